package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// DeepgramSTT streams 16-bit PCM to Deepgram's live transcription
// WebSocket and surfaces interim and final results.
type DeepgramSTT struct {
	apiKey        string
	url           string
	model         string
	sampleRate    int
	endpointingMs int
}

func NewDeepgramSTT(apiKey string) *DeepgramSTT {
	return &DeepgramSTT{
		apiKey:        apiKey,
		url:           "wss://api.deepgram.com/v1/listen",
		model:         "nova-2-phonecall",
		sampleRate:    audio.TransportSampleRate,
		endpointingMs: 300,
	}
}

func (s *DeepgramSTT) Name() string {
	return "deepgram-stt"
}

type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *DeepgramSTT) StreamTranscribe(ctx context.Context, audioIn <-chan []byte, lang orchestrator.Language) (<-chan orchestrator.TranscriptEvent, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, err
	}
	params := u.Query()
	params.Set("model", s.model)
	params.Set("encoding", "linear16")
	params.Set("sample_rate", strconv.Itoa(s.sampleRate))
	params.Set("channels", "1")
	params.Set("interim_results", "true")
	params.Set("punctuate", "true")
	params.Set("endpointing", strconv.Itoa(s.endpointingMs))
	if lang != "" {
		params.Set("language", string(lang))
	}
	u.RawQuery = params.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Token " + s.apiKey}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to deepgram: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	streamCtx, cancel := context.WithCancel(ctx)
	out := make(chan orchestrator.TranscriptEvent, 8)

	go s.writeLoop(streamCtx, conn, audioIn)

	go func() {
		defer close(out)
		defer cancel()
		defer conn.CloseNow()

		for {
			var msg deepgramMessage
			if err := wsjson.Read(streamCtx, conn, &msg); err != nil {
				if streamCtx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					return
				}
				select {
				case out <- orchestrator.TranscriptEvent{Err: fmt.Errorf("%w: deepgram: %v", orchestrator.ErrTranscriptionFailed, err)}:
				case <-streamCtx.Done():
				}
				return
			}
			if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
				continue
			}
			text := msg.Channel.Alternatives[0].Transcript
			if text == "" {
				continue
			}
			select {
			case out <- orchestrator.TranscriptEvent{Text: text, Final: msg.IsFinal}:
			case <-streamCtx.Done():
				return
			}
		}
	}()

	return out, nil
}

// writeLoop forwards audio until the input closes, then asks Deepgram to
// flush and close the stream.
func (s *DeepgramSTT) writeLoop(ctx context.Context, conn *websocket.Conn, audioIn <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case pcm, ok := <-audioIn:
			if !ok {
				if err := wsjson.Write(ctx, conn, map[string]string{"type": "CloseStream"}); err != nil && !errors.Is(err, context.Canceled) {
					conn.Close(websocket.StatusAbnormalClosure, "close stream failed")
				}
				return
			}
			if err := conn.Write(ctx, websocket.MessageBinary, pcm); err != nil {
				return
			}
		}
	}
}
