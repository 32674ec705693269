package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// GeminiLLM completes chats with the Gemini API. System messages become the
// system instruction; assistant turns are sent with the model role.
type GeminiLLM struct {
	client   *genai.Client
	model    string
	jsonMode bool
}

func NewGeminiLLM(ctx context.Context, apiKey string, model string) (*GeminiLLM, error) {
	return newGeminiLLM(ctx, apiKey, model, "")
}

func newGeminiLLM(ctx context.Context, apiKey, model, baseURL string) (*GeminiLLM, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiLLM{client: client, model: model, jsonMode: true}, nil
}

func (l *GeminiLLM) Complete(ctx context.Context, messages []orchestrator.Message) (string, error) {
	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.4),
		MaxOutputTokens: 500,
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if l.jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := l.client.Models.GenerateContent(ctx, l.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini llm: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini llm: empty response")
	}
	return text, nil
}

func (l *GeminiLLM) Name() string {
	return "gemini-llm"
}
