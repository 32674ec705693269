package stt

import (
	"context"
	"strings"
	"time"

	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// MockSTT plays back scripted utterances: after every interval of received
// audio it emits an interim result followed by the final one. Once the
// script is exhausted it only drains audio.
type MockSTT struct {
	utterances []string
	interval   time.Duration
	sampleRate int
}

func NewMockSTT(utterances []string, interval time.Duration) *MockSTT {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &MockSTT{
		utterances: utterances,
		interval:   interval,
		sampleRate: audio.TransportSampleRate,
	}
}

func (s *MockSTT) Name() string {
	return "mock-stt"
}

func (s *MockSTT) StreamTranscribe(ctx context.Context, audioIn <-chan []byte, lang orchestrator.Language) (<-chan orchestrator.TranscriptEvent, error) {
	out := make(chan orchestrator.TranscriptEvent, 2)
	bytesPerInterval := int(s.interval.Seconds() * float64(s.sampleRate*audio.PCMSampleWidth))

	go func() {
		defer close(out)
		next := 0
		received := 0
		for {
			select {
			case <-ctx.Done():
				return
			case pcm, ok := <-audioIn:
				if !ok {
					return
				}
				received += len(pcm)
				if next >= len(s.utterances) || received < bytesPerInterval {
					continue
				}
				received = 0
				text := s.utterances[next]
				next++

				events := []orchestrator.TranscriptEvent{{Text: text, Final: true}}
				if words := strings.Fields(text); len(words) > 1 {
					events = append([]orchestrator.TranscriptEvent{{Text: words[0], Final: false}}, events...)
				}
				for _, ev := range events {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}
