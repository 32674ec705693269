package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// Segmented adapts a batch STTProvider to the streaming contract. A VAD
// endpoints the caller's speech; each utterance is collected in a bounded
// buffer and transcribed when speech ends or the audio stream closes.
type Segmented struct {
	stt            orchestrator.STTProvider
	vad            orchestrator.VADProvider
	maxUtteranceMs int
	minUtteranceMs int
	preRollMs      int
}

func NewSegmented(stt orchestrator.STTProvider, vad orchestrator.VADProvider, maxUtteranceMs int) *Segmented {
	if maxUtteranceMs <= 0 {
		maxUtteranceMs = 15000
	}
	return &Segmented{
		stt:            stt,
		vad:            vad,
		maxUtteranceMs: maxUtteranceMs,
		minUtteranceMs: 200,
		preRollMs:      200,
	}
}

func (s *Segmented) Name() string {
	return "segmented:" + s.stt.Name()
}

func (s *Segmented) StreamTranscribe(ctx context.Context, audioIn <-chan []byte, lang orchestrator.Language) (<-chan orchestrator.TranscriptEvent, error) {
	if s.stt == nil || s.vad == nil {
		return nil, orchestrator.ErrNilProvider
	}
	vad := s.vad.Clone()
	out := make(chan orchestrator.TranscriptEvent, 4)

	go func() {
		defer close(out)

		utterance := audio.NewBuffer(s.maxUtteranceMs)
		// audio just before speech is confirmed
		preRoll := audio.NewBuffer(s.preRollMs)
		speaking := false

		send := func(ev orchestrator.TranscriptEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		flush := func() bool {
			defer utterance.Clear()
			if utterance.DurationMs() < float64(s.minUtteranceMs) {
				return true
			}
			text, err := s.stt.Transcribe(ctx, utterance.Audio(), lang)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				return send(orchestrator.TranscriptEvent{Err: fmt.Errorf("%w: %s: %v", orchestrator.ErrTranscriptionFailed, s.stt.Name(), err)})
			}
			if text = strings.TrimSpace(text); text == "" {
				return true
			}
			return send(orchestrator.TranscriptEvent{Text: text, Final: true})
		}

		for {
			select {
			case <-ctx.Done():
				return
			case pcm, ok := <-audioIn:
				if !ok {
					if speaking {
						flush()
					}
					return
				}

				ev, err := vad.Process(pcm)
				if err != nil {
					continue
				}
				var eventType orchestrator.VADEventType
				if ev != nil {
					eventType = ev.Type
				}

				switch {
				case eventType == orchestrator.VADSpeechStart:
					speaking = true
					utterance.AddChunk(preRoll.Audio())
					preRoll.Clear()
					utterance.AddChunk(pcm)
				case eventType == orchestrator.VADSpeechEnd:
					speaking = false
					utterance.AddChunk(pcm)
					if !flush() {
						return
					}
				case speaking:
					utterance.AddChunk(pcm)
				default:
					preRoll.AddChunk(pcm)
				}
			}
		}
	}()

	return out, nil
}
