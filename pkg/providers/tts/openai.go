package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// openAIVoices maps the gateway's voice ids onto OpenAI voices.
var openAIVoices = map[orchestrator.Voice]string{
	orchestrator.VoiceF1: "nova",
	orchestrator.VoiceF2: "shimmer",
	orchestrator.VoiceF3: "alloy",
	orchestrator.VoiceF4: "coral",
	orchestrator.VoiceF5: "sage",
	orchestrator.VoiceM1: "onyx",
	orchestrator.VoiceM2: "echo",
	orchestrator.VoiceM3: "fable",
	orchestrator.VoiceM4: "ash",
	orchestrator.VoiceM5: "ballad",
}

// OpenAITTS streams raw 24 kHz 16-bit PCM from the speech endpoint.
type OpenAITTS struct {
	apiKey    string
	url       string
	model     string
	chunkSize int
	client    *http.Client
}

func NewOpenAITTS(apiKey string, model string) *OpenAITTS {
	if model == "" {
		model = "tts-1"
	}
	return &OpenAITTS{
		apiKey:    apiKey,
		url:       "https://api.openai.com/v1/audio/speech",
		model:     model,
		chunkSize: 4096,
		client:    http.DefaultClient,
	}
}

func (t *OpenAITTS) StreamSynthesize(ctx context.Context, text string, voice orchestrator.Voice, lang orchestrator.Language, onChunk func([]byte) error) error {
	v, ok := openAIVoices[voice]
	if !ok {
		v = "nova"
	}
	body, err := json.Marshal(map[string]interface{}{
		"model":           t.model,
		"input":           text,
		"voice":           v,
		"response_format": "pcm",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("openai tts error (status %d): %s", resp.StatusCode, string(respBody))
	}

	buf := make([]byte, t.chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if cbErr := onChunk(chunk); cbErr != nil {
				return cbErr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai tts stream: %w", err)
		}
	}
}

func (t *OpenAITTS) SampleRate() int {
	return 24000
}

func (t *OpenAITTS) Name() string {
	return "openai-tts"
}
