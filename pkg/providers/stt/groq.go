package stt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// GroqSTT transcribes complete utterances with Groq's Whisper endpoint.
type GroqSTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
	client     *http.Client
}

func NewGroqSTT(apiKey string, model string) *GroqSTT {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqSTT{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      model,
		sampleRate: audio.TransportSampleRate,
		client:     http.DefaultClient,
	}
}

func (s *GroqSTT) SetSampleRate(rate int) {
	s.sampleRate = rate
}

func (s *GroqSTT) Transcribe(ctx context.Context, audioPCM []byte, lang orchestrator.Language) (string, error) {
	client := s.client
	if client == nil {
		client = http.DefaultClient
	}
	text, err := transcribeWhisper(ctx, client, s.url, s.apiKey, s.model, audio.NewWavBuffer(audioPCM, s.sampleRate), lang)
	if err != nil {
		return "", fmt.Errorf("groq stt: %w", err)
	}
	return text, nil
}

func (s *GroqSTT) Name() string {
	return "groq-stt"
}
