package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateDuplicate(t *testing.T) {
	r := NewRegistry(1000, nil)
	_, err := r.Create("CA1", "+15550001", "MZ1")
	require.NoError(t, err)

	_, err = r.Create("CA1", "+15550002", "MZ2")
	var dup *DuplicateSessionError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "CA1", dup.ID)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry(1000, nil)
	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryCloseIsIdempotent(t *testing.T) {
	var hooks int
	r := NewRegistry(1000, func(s *Session) {
		hooks++
		assert.False(t, s.IsActive())
		assert.Equal(t, StatusAbandoned, s.Status())
	})
	s, err := r.Create("CA1", "", "MZ1")
	require.NoError(t, err)

	assert.True(t, r.Close("CA1", StatusAbandoned))
	assert.False(t, r.Close("CA1", StatusCompleted))
	assert.False(t, r.Close("never-existed", StatusCompleted))
	assert.Equal(t, 1, hooks)
	assert.Equal(t, StatusAbandoned, s.Status())
	assert.Zero(t, r.Len())
}

func TestRegistryClosingOneLeavesOthers(t *testing.T) {
	r := NewRegistry(1000, nil)
	const n = 5
	for i := 1; i <= n; i++ {
		_, err := r.Create(fmt.Sprintf("S%d", i), "", "")
		require.NoError(t, err)
	}

	r.Close("S1", StatusCompleted)
	assert.Equal(t, n-1, r.Len())
	for i := 2; i <= n; i++ {
		s, err := r.Get(fmt.Sprintf("S%d", i))
		require.NoError(t, err)
		assert.True(t, s.IsActive())
	}
	assert.Equal(t, []string{"S2", "S3", "S4", "S5"}, r.IDs())
}

func TestRegistryConcurrentClose(t *testing.T) {
	var mu sync.Mutex
	hooks := map[string]int{}
	r := NewRegistry(1000, func(s *Session) {
		mu.Lock()
		hooks[s.ID]++
		mu.Unlock()
	})
	_, err := r.Create("CA1", "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Close("CA1", StatusCompleted)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, hooks["CA1"])
}
