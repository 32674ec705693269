package orchestrator

import (
	"sort"
	"sync"
)

// Registry maps session ids to sessions. It is the only structure shared
// between calls, and the only place sessions are created or destroyed.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxBufferMs int
	onClose     func(*Session)
}

// NewRegistry creates a registry. onClose, if set, runs exactly once per
// session, before it is removed. It must not block.
func NewRegistry(maxBufferMs int, onClose func(*Session)) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		maxBufferMs: maxBufferMs,
		onClose:     onClose,
	}
}

func (r *Registry) Create(id, callerID, streamSID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return nil, &DuplicateSessionError{ID: id}
	}
	s := NewSession(id, callerID, streamSID, r.maxBufferMs)
	r.sessions[id] = s
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close ends the session with the given status, runs the close hook and
// removes it. Closing an unknown or already closed id is a no-op and
// reports false.
func (r *Registry) Close(id string, status CallStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.end(status)
	if r.onClose != nil {
		r.onClose(s)
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IDs returns the registered session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
