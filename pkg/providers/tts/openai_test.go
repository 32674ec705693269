package tts

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

func TestOpenAITTS(t *testing.T) {
	pcm := make([]byte, 10000)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	var req map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Write(pcm)
	}))
	defer server.Close()

	tts := NewOpenAITTS("test-key", "")
	tts.url = server.URL

	var audio []byte
	err := tts.StreamSynthesize(context.Background(), "hello", orchestrator.VoiceM1, orchestrator.LanguageEn, func(chunk []byte) error {
		audio = append(audio, chunk...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, pcm, audio)
	assert.Equal(t, "pcm", req["response_format"])
	assert.Equal(t, "onyx", req["voice"])
	assert.Equal(t, "tts-1", req["model"])
	assert.Equal(t, 24000, tts.SampleRate())
	assert.Equal(t, "openai-tts", tts.Name())
}

func TestOpenAITTSErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad input"))
	}))
	defer server.Close()

	tts := NewOpenAITTS("test-key", "")
	tts.url = server.URL

	err := tts.StreamSynthesize(context.Background(), "hello", orchestrator.VoiceF1, orchestrator.LanguageEn, func([]byte) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
