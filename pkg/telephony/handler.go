package telephony

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

const (
	writeTimeout = 5 * time.Second
	readLimit    = 1 << 20
)

// Handler upgrades media-stream connections and runs one MediaStream per
// connection.
type Handler struct {
	starter CallStarter
	logger  orchestrator.Logger
	metrics orchestrator.Metrics
	// AcceptOptions is passed to websocket.Accept.
	AcceptOptions *websocket.AcceptOptions
}

func NewHandler(starter CallStarter, logger orchestrator.Logger, metrics orchestrator.Metrics) *Handler {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	if metrics == nil {
		metrics = orchestrator.NoOpMetrics{}
	}
	return &Handler{starter: starter, logger: logger, metrics: metrics}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.AcceptOptions)
	if err != nil {
		h.logger.Warn("media stream upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(readLimit)

	status, reason := h.Serve(r.Context(), conn)
	conn.Close(status, reason)
}

// Serve runs the read loop on an accepted connection until the call stops,
// the peer goes away, or the call fails. It returns the close status to send.
func (h *Handler) Serve(ctx context.Context, conn *websocket.Conn) (websocket.StatusCode, string) {
	// The call outlives the request context only until the read loop exits.
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	var failure error
	var failMu sync.Mutex
	stream := NewMediaStream(h.starter, &wsFrameWriter{conn: conn}, StreamOptions{
		Logger:  h.logger,
		Metrics: h.metrics,
		OnFailure: func(err error) {
			failMu.Lock()
			failure = err
			failMu.Unlock()
			cancel()
		},
	})
	defer stream.Disconnect()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			failMu.Lock()
			failed := failure
			failMu.Unlock()
			switch {
			case failed != nil:
				return websocket.StatusInternalError, "call failed"
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway:
				h.logger.Info("media stream closed by peer", "session_id", stream.SessionID())
			case !errors.Is(err, context.Canceled):
				h.logger.Warn("media stream read failed", "session_id", stream.SessionID(), "error", err)
			}
			return websocket.StatusNormalClosure, ""
		}

		msg, err := ParseMessage(data)
		if err == nil {
			err = stream.Handle(ctx, msg)
		}
		if err != nil {
			h.logger.Error("media stream transport error", "session_id", stream.SessionID(), "error", err)
			return websocket.StatusUnsupportedData, "malformed message"
		}
		if stream.Closed() {
			return websocket.StatusNormalClosure, ""
		}
	}
}

// wsFrameWriter sends outbound media events on a connection.
type wsFrameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsFrameWriter) WriteFrame(ctx context.Context, streamSID string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	w.mu.Lock()
	defer w.mu.Unlock()
	return wsjson.Write(ctx, w.conn, NewOutboundMedia(streamSID, payload))
}
