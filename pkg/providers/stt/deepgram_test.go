package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

func deepgramResult(text string, final bool) map[string]interface{} {
	return map[string]interface{}{
		"type":     "Results",
		"is_final": final,
		"channel": map[string]interface{}{
			"alternatives": []map[string]interface{}{{"transcript": text, "confidence": 0.98}},
		},
	}
}

func TestDeepgramSTTStream(t *testing.T) {
	var received atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("encoding") != "linear16" || q.Get("sample_rate") != "8000" || q.Get("interim_results") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				received.Add(int64(len(data)))
				continue
			}
			if !strings.Contains(string(data), "CloseStream") {
				continue
			}
			wsjson.Write(ctx, conn, deepgramResult("I need", false))
			wsjson.Write(ctx, conn, deepgramResult("", true))
			wsjson.Write(ctx, conn, map[string]string{"type": "Metadata"})
			wsjson.Write(ctx, conn, deepgramResult("I need an appointment", true))
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}))
	defer server.Close()

	s := NewDeepgramSTT("test-key")
	s.url = "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	audioIn := make(chan []byte, 4)
	events, err := s.StreamTranscribe(ctx, audioIn, orchestrator.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	audioIn <- make([]byte, 320)
	audioIn <- make([]byte, 320)
	close(audioIn)

	var got []orchestrator.TranscriptEvent
	for ev := range events {
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(got), got)
	}
	if got[0].Final || got[0].Text != "I need" {
		t.Errorf("unexpected interim event: %+v", got[0])
	}
	if !got[1].Final || got[1].Text != "I need an appointment" {
		t.Errorf("unexpected final event: %+v", got[1])
	}
	if received.Load() != 640 {
		t.Errorf("expected 640 audio bytes at server, got %d", received.Load())
	}
}

func TestDeepgramSTTDialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	s := NewDeepgramSTT("bad-key")
	s.url = "ws" + strings.TrimPrefix(server.URL, "http")

	if _, err := s.StreamTranscribe(context.Background(), make(chan []byte), orchestrator.LanguageEn); err == nil {
		t.Fatal("expected dial error")
	}
}
