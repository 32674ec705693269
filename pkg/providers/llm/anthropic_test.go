package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

type anthropicRequest struct {
	Model       string              `json:"model"`
	Messages    []map[string]string `json:"messages"`
	System      string              `json:"system"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
}

func TestAnthropicLLMShapesHistory(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" || r.Header.Get("anthropic-version") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": `{"intent":"faq",`},
				{"type": "tool_use", "text": "ignored"},
				{"type": "text", "text": `"message":"We open at nine."}`},
			},
		})
	}))
	defer srv.Close()

	l := NewAnthropicLLM("test-key", "")
	l.url = srv.URL
	l.client = srv.Client()

	resp, err := l.Complete(context.Background(), []orchestrator.Message{
		{Role: "system", Content: "you are a receptionist"},
		{Role: "system", Content: "answer in JSON"},
		{Role: "assistant", Content: "Hello!"},
		{Role: "user", Content: "hi"},
		{Role: "user", Content: "when do you open?"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"faq","message":"We open at nine."}`, resp)

	assert.Equal(t, "claude-3-5-haiku-latest", got.Model)
	assert.Equal(t, "you are a receptionist\n\nanswer in JSON", got.System)
	assert.Equal(t, 500, got.MaxTokens)
	assert.InDelta(t, 0.4, got.Temperature, 1e-9)
	assert.Equal(t, []map[string]string{
		{"role": "assistant", "content": "Hello!"},
		{"role": "user", "content": "hi\nwhen do you open?"},
	}, got.Messages)
	assert.Equal(t, "anthropic-llm", l.Name())
}

func TestAnthropicLLMEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	l := NewAnthropicLLM("test-key", "claude-test")
	l.url = srv.URL

	_, err := l.Complete(context.Background(), []orchestrator.Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}

func TestAnthropicLLMStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := NewAnthropicLLM("test-key", "")
	l.url = srv.URL

	_, err := l.Complete(context.Background(), []orchestrator.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
