package orchestrator

import (
	"sync"
	"time"

	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
)

// Session is the state of one call. It is owned by the Registry; pipeline
// code holds a reference only while the session is active.
type Session struct {
	mu sync.RWMutex

	ID        string
	CallerID  string
	StreamSID string
	CreatedAt time.Time

	turns      []Turn
	buffer     *audio.Buffer
	active     bool
	latency    []LatencyMetric
	endToEnd   []time.Duration
	lastIntent Intent
	booked     bool
	escalated  bool
	status     CallStatus
	endedAt    time.Time
}

func NewSession(id, callerID, streamSID string, maxBufferMs int) *Session {
	return &Session{
		ID:         id,
		CallerID:   callerID,
		StreamSID:  streamSID,
		CreatedAt:  time.Now(),
		buffer:     audio.NewBuffer(maxBufferMs),
		active:     true,
		lastIntent: IntentOther,
		status:     StatusCompleted,
	}
}

// AppendTurn adds a turn to the end of the history.
func (s *Session) AppendTurn(role Role, text string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Turn{Role: role, Text: text, Timestamp: time.Now()}
	s.turns = append(s.turns, t)
	return t
}

// Turns returns a copy of the history in conversational order.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// AddAudio appends decoded caller PCM to the bounded buffer.
func (s *Session) AddAudio(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.AddChunk(pcm)
}

// BufferedAudio returns a copy of the buffered caller audio.
func (s *Session) BufferedAudio() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffer.Audio()
}

func (s *Session) BufferedDurationMs() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffer.DurationMs()
}

func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Session) RecordLatency(stage LatencyStage, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = append(s.latency, LatencyMetric{Stage: stage, Timestamp: at})
}

func (s *Session) LatencyMetrics() []LatencyMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LatencyMetric, len(s.latency))
	copy(out, s.latency)
	return out
}

func (s *Session) recordEndToEnd(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endToEnd = append(s.endToEnd, d)
}

// ApplyDirective records the call-level facts a directive carries.
// IntentOther never overwrites a more specific intent.
func (s *Session) ApplyDirective(d *ResponseDirective) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Intent != "" && d.Intent != IntentOther {
		s.lastIntent = d.Intent
	}
	if d.WantsBooking() {
		s.booked = true
	}
	if d.WantsEscalation() {
		s.escalated = true
	}
}

func (s *Session) LastIntent() Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastIntent
}

// end marks the session inactive with a terminal status. Only the first call wins.
func (s *Session) end(status CallStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	s.status = status
	s.endedAt = time.Now()
}

func (s *Session) Status() CallStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
