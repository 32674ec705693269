package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// GroqLLM talks to Groq's OpenAI-compatible chat endpoint.
type GroqLLM struct {
	apiKey   string
	url      string
	model    string
	jsonMode bool
	client   *http.Client
}

func NewGroqLLM(apiKey string, model string) *GroqLLM {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &GroqLLM{
		apiKey:   apiKey,
		url:      "https://api.groq.com/openai/v1/chat/completions",
		model:    model,
		jsonMode: true,
		client:   http.DefaultClient,
	}
}

func (l *GroqLLM) Complete(ctx context.Context, messages []orchestrator.Message) (string, error) {
	req := chatRequest{
		Model:       l.model,
		Messages:    messages,
		Temperature: 0.4,
		MaxTokens:   500,
	}
	if l.jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	out, err := chatCompletion(ctx, l.client, l.url, l.apiKey, req)
	if err != nil {
		return "", fmt.Errorf("groq llm: %w", err)
	}
	return out, nil
}

func (l *GroqLLM) Name() string {
	return "groq-llm"
}
