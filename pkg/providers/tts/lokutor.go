package tts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

const (
	lokutorSampleRate = 44100
	lokutorMaxIdle    = 4
)

// LokutorTTS streams PCM from the Lokutor WebSocket API. Each synthesis holds
// a connection exclusively; finished connections go back to a small idle pool
// so concurrent calls never wait on each other.
type LokutorTTS struct {
	apiKey     string
	host       string
	scheme     string
	sampleRate int
	maxIdle    int

	mu   sync.Mutex
	idle []*websocket.Conn
}

func NewLokutorTTS(apiKey string) *LokutorTTS {
	return &LokutorTTS{
		apiKey:     apiKey,
		host:       "api.lokutor.com",
		scheme:     "wss",
		sampleRate: lokutorSampleRate,
		maxIdle:    lokutorMaxIdle,
	}
}

func (t *LokutorTTS) acquire(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	if n := len(t.idle); n > 0 {
		conn := t.idle[n-1]
		t.idle = t.idle[:n-1]
		t.mu.Unlock()
		return conn, nil
	}
	t.mu.Unlock()

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + url.QueryEscape(t.apiKey)}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}
	conn.SetReadLimit(10 * 1024 * 1024)
	return conn, nil
}

// release returns a connection that finished a request cleanly to the pool.
func (t *LokutorTTS) release(conn *websocket.Conn) {
	t.mu.Lock()
	if len(t.idle) < t.maxIdle {
		t.idle = append(t.idle, conn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "")
}

func (t *LokutorTTS) StreamSynthesize(ctx context.Context, text string, voice orchestrator.Voice, lang orchestrator.Language, onChunk func([]byte) error) error {
	conn, err := t.acquire(ctx)
	if err != nil {
		return err
	}

	req := map[string]interface{}{
		"text":    text,
		"voice":   string(voice),
		"lang":    string(lang),
		"speed":   1.0,
		"steps":   6,
		"visemes": false,
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				// The rest of this response is still in flight; the connection cannot be reused.
				conn.Close(websocket.StatusNormalClosure, "consumer stopped")
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				t.release(conn)
				return nil
			}
			if strings.HasPrefix(msg, "ERR:") {
				t.release(conn)
				return fmt.Errorf("lokutor error: %s", strings.TrimSpace(strings.TrimPrefix(msg, "ERR:")))
			}
		}
	}
}

func (t *LokutorTTS) SampleRate() int {
	return t.sampleRate
}

func (t *LokutorTTS) Name() string {
	return "lokutor"
}

// Close closes every idle connection.
func (t *LokutorTTS) Close() error {
	t.mu.Lock()
	idle := t.idle
	t.idle = nil
	t.mu.Unlock()

	var firstErr error
	for _, conn := range idle {
		if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
