package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

type OpenAILLM struct {
	apiKey      string
	url         string
	model       string
	temperature float64
	maxTokens   int
	jsonMode    bool
	client      *http.Client
}

func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAILLM{
		apiKey:      apiKey,
		url:         "https://api.openai.com/v1/chat/completions",
		model:       model,
		temperature: 0.4,
		maxTokens:   500,
		jsonMode:    true,
		client:      http.DefaultClient,
	}
}

// SetJSONMode toggles response_format json_object.
func (l *OpenAILLM) SetJSONMode(enabled bool) {
	l.jsonMode = enabled
}

func (l *OpenAILLM) Complete(ctx context.Context, messages []orchestrator.Message) (string, error) {
	req := chatRequest{
		Model:       l.model,
		Messages:    messages,
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	}
	if l.jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	out, err := chatCompletion(ctx, l.client, l.url, l.apiKey, req)
	if err != nil {
		return "", fmt.Errorf("openai llm: %w", err)
	}
	return out, nil
}

func (l *OpenAILLM) Name() string {
	return "openai-llm"
}
