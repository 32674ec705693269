package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

func TestMockTTSLengthFollowsText(t *testing.T) {
	m := NewMockTTS(0)

	var total, chunks int
	err := m.StreamSynthesize(context.Background(), "hello", orchestrator.VoiceF1, orchestrator.LanguageEn, func(chunk []byte) error {
		total += len(chunk)
		chunks++
		return nil
	})
	assert.NoError(t, err)
	// 5 chars * 60 ms = 300 ms of 24 kHz 16-bit audio in 100 ms chunks.
	assert.Equal(t, 300*24*2, total)
	assert.Equal(t, 3, chunks)
	assert.Equal(t, 24000, m.SampleRate())
}

func TestMockTTSStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := NewMockTTS(0).StreamSynthesize(context.Background(), "a longer sentence", orchestrator.VoiceF1, orchestrator.LanguageEn, func([]byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestMockTTSCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMockTTS(0).StreamSynthesize(ctx, "hello", orchestrator.VoiceF1, orchestrator.LanguageEn, func([]byte) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
