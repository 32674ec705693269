package stt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// OpenAISTT transcribes complete utterances with OpenAI Whisper.
type OpenAISTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
	client     *http.Client
}

func NewOpenAISTT(apiKey string, model string) *OpenAISTT {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAISTT{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/audio/transcriptions",
		model:      model,
		sampleRate: audio.TransportSampleRate,
		client:     http.DefaultClient,
	}
}

func (s *OpenAISTT) SetSampleRate(rate int) {
	s.sampleRate = rate
}

func (s *OpenAISTT) Name() string {
	return "openai_stt"
}

func (s *OpenAISTT) Transcribe(ctx context.Context, audioPCM []byte, lang orchestrator.Language) (string, error) {
	text, err := transcribeWhisper(ctx, s.httpClient(), s.url, s.apiKey, s.model, audio.NewWavBuffer(audioPCM, s.sampleRate), lang)
	if err != nil {
		return "", fmt.Errorf("openai stt: %w", err)
	}
	return text, nil
}

func (s *OpenAISTT) httpClient() *http.Client {
	if s.client == nil {
		return http.DefaultClient
	}
	return s.client
}
