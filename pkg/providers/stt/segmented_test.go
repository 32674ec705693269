package stt

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

type recordingBatchSTT struct {
	mu    sync.Mutex
	sizes []int
	text  string
	err   error
}

func (r *recordingBatchSTT) Transcribe(ctx context.Context, audio []byte, lang orchestrator.Language) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes = append(r.sizes, len(audio))
	return r.text, r.err
}

func (r *recordingBatchSTT) Name() string { return "recording" }

func quietFrame() []byte { return make([]byte, 320) }

func speechFrame() []byte {
	out := make([]byte, 320)
	for i := 0; i < 160; i++ {
		v := int16(10000)
		if i%2 == 1 {
			v = -10000
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func collect(t *testing.T, s *Segmented, frames [][]byte) []orchestrator.TranscriptEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	in := make(chan []byte, len(frames))
	for _, f := range frames {
		in <- f
	}
	close(in)

	events, err := s.StreamTranscribe(ctx, in, orchestrator.LanguageEn)
	require.NoError(t, err)
	var got []orchestrator.TranscriptEvent
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func repeat(frame func() []byte, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = frame()
	}
	return out
}

func TestSegmentedTranscribesOnSpeechEnd(t *testing.T) {
	batch := &recordingBatchSTT{text: " hello there "}
	s := NewSegmented(batch, orchestrator.NewRMSVAD(0.02, 100*time.Millisecond), 0)

	var frames [][]byte
	frames = append(frames, repeat(quietFrame, 5)...)
	frames = append(frames, repeat(speechFrame, 10)...)
	frames = append(frames, repeat(quietFrame, 6)...)

	got := collect(t, s, frames)
	require.Len(t, got, 1)
	assert.Equal(t, orchestrator.TranscriptEvent{Text: "hello there", Final: true}, got[0])

	// pre-roll (5 quiet + 2 unconfirmed) + 8 confirmed speech + 5 hangover frames
	assert.Equal(t, []int{20 * 320}, batch.sizes)
	assert.Equal(t, "segmented:recording", s.Name())
}

func TestSegmentedFlushesAtStreamEnd(t *testing.T) {
	batch := &recordingBatchSTT{text: "cut off"}
	s := NewSegmented(batch, orchestrator.NewRMSVAD(0.02, time.Second), 0)

	got := collect(t, s, repeat(speechFrame, 20))
	require.Len(t, got, 1)
	assert.Equal(t, "cut off", got[0].Text)
	assert.True(t, got[0].Final)
}

func TestSegmentedReportsErrors(t *testing.T) {
	batch := &recordingBatchSTT{err: errors.New("timeout")}
	s := NewSegmented(batch, orchestrator.NewRMSVAD(0.02, 40*time.Millisecond), 0)

	got := collect(t, s, append(repeat(speechFrame, 15), repeat(quietFrame, 3)...))
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].Err, orchestrator.ErrTranscriptionFailed)
}

func TestSegmentedSkipsSilenceAndBlips(t *testing.T) {
	batch := &recordingBatchSTT{text: "never"}
	s := NewSegmented(batch, orchestrator.NewRMSVAD(0.02, 40*time.Millisecond), 0)

	got := collect(t, s, repeat(quietFrame, 50))
	assert.Empty(t, got)
	assert.Empty(t, batch.sizes)
}
