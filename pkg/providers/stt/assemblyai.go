package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// AssemblyAISTT transcribes complete utterances with AssemblyAI's
// upload, submit and poll API.
type AssemblyAISTT struct {
	apiKey       string
	baseURL      string
	sampleRate   int
	pollInterval time.Duration
	client       *http.Client
}

func NewAssemblyAISTT(apiKey string) *AssemblyAISTT {
	return &AssemblyAISTT{
		apiKey:       apiKey,
		baseURL:      "https://api.assemblyai.com/v2",
		sampleRate:   audio.TransportSampleRate,
		pollInterval: 500 * time.Millisecond,
		client:       http.DefaultClient,
	}
}

func (s *AssemblyAISTT) Name() string {
	return "assemblyai-stt"
}

func (s *AssemblyAISTT) Transcribe(ctx context.Context, audioPCM []byte, lang orchestrator.Language) (string, error) {
	uploadURL, err := s.upload(ctx, audio.NewWavBuffer(audioPCM, s.sampleRate))
	if err != nil {
		return "", fmt.Errorf("assemblyai upload: %w", err)
	}

	transcriptID, err := s.submit(ctx, uploadURL, lang)
	if err != nil {
		return "", fmt.Errorf("assemblyai submit: %w", err)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			text, status, errMsg, err := s.getTranscript(ctx, transcriptID)
			if err != nil {
				return "", fmt.Errorf("assemblyai poll: %w", err)
			}
			switch status {
			case "completed":
				return text, nil
			case "error":
				return "", fmt.Errorf("assemblyai transcription failed: %s", errMsg)
			}
		}
	}
}

func (s *AssemblyAISTT) upload(ctx context.Context, wav []byte) (string, error) {
	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := s.do(ctx, http.MethodPost, "/upload", "application/octet-stream", bytes.NewReader(wav), &result); err != nil {
		return "", err
	}
	if result.UploadURL == "" {
		return "", fmt.Errorf("empty upload url")
	}
	return result.UploadURL, nil
}

func (s *AssemblyAISTT) submit(ctx context.Context, uploadURL string, lang orchestrator.Language) (string, error) {
	payload := map[string]interface{}{
		"audio_url": uploadURL,
	}
	if lang != "" {
		payload["language_code"] = string(lang)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := s.do(ctx, http.MethodPost, "/transcript", "application/json", bytes.NewReader(body), &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (s *AssemblyAISTT) getTranscript(ctx context.Context, id string) (text, status, errMsg string, err error) {
	var result struct {
		Status string `json:"status"`
		Text   string `json:"text"`
		Error  string `json:"error"`
	}
	if err := s.do(ctx, http.MethodGet, "/transcript/"+id, "", nil, &result); err != nil {
		return "", "", "", err
	}
	return result.Text, result.Status, result.Error, nil
}

func (s *AssemblyAISTT) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", s.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := s.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
