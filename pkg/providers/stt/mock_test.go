package stt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

func TestMockSTTEmitsScriptByAudioTime(t *testing.T) {
	s := NewMockSTT([]string{"I need an appointment", "thanks"}, 100*time.Millisecond)

	in := make(chan []byte, 20)
	for i := 0; i < 12; i++ {
		in <- make([]byte, 320) // 20 ms
	}
	close(in)

	events, err := s.StreamTranscribe(context.Background(), in, orchestrator.LanguageEn)
	require.NoError(t, err)

	var got []orchestrator.TranscriptEvent
	for ev := range events {
		got = append(got, ev)
	}
	assert.Equal(t, []orchestrator.TranscriptEvent{
		{Text: "I", Final: false},
		{Text: "I need an appointment", Final: true},
		{Text: "thanks", Final: true},
	}, got)
}
