package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
	"github.com/lokutor-ai/lokutor-callstream/pkg/providers/llm"
	"github.com/lokutor-ai/lokutor-callstream/pkg/providers/stt"
	"github.com/lokutor-ai/lokutor-callstream/pkg/providers/tts"
)

type recordingActions struct {
	mu   sync.Mutex
	logs []orchestrator.CallLog
}

func (r *recordingActions) DispatchBooking(context.Context, orchestrator.BookingRequest) error {
	return nil
}

func (r *recordingActions) DispatchEscalation(context.Context, orchestrator.EscalationRequest) error {
	return nil
}

func (r *recordingActions) DispatchCallLog(_ context.Context, log orchestrator.CallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *recordingActions) callLogs() []orchestrator.CallLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]orchestrator.CallLog(nil), r.logs...)
}

type recordingWriter struct {
	mu     sync.Mutex
	frames int
	sids   map[string]bool
	err    error
}

func (w *recordingWriter) WriteFrame(_ context.Context, streamSID string, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.sids == nil {
		w.sids = map[string]bool{}
	}
	w.sids[streamSID] = true
	w.frames++
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

type countingMetrics struct {
	orchestrator.NoOpMetrics
	mu      sync.Mutex
	dropped map[string]int
}

func (m *countingMetrics) FrameDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dropped == nil {
		m.dropped = map[string]int{}
	}
	m.dropped[reason]++
}

func (m *countingMetrics) droppedFor(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}

func newTestOrchestrator(t *testing.T, actions orchestrator.ActionDispatcher, utterances ...string) *orchestrator.Orchestrator {
	t.Helper()
	cfg := orchestrator.DefaultConfig()
	cfg.Greeting = "Hi."
	cfg.PipelineGrace = time.Second
	cfg.EgressGrace = time.Second
	o, err := orchestrator.New(
		stt.NewMockSTT(utterances, 200*time.Millisecond),
		llm.NewMockDialogue(),
		tts.NewMockTTS(0),
		cfg,
		orchestrator.WithActions(actions),
	)
	require.NoError(t, err)
	return o
}

func startMessage(callSID, streamSID, caller string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"event":     "start",
		"streamSid": streamSID,
		"start": map[string]interface{}{
			"callSid":          callSID,
			"streamSid":        streamSID,
			"customParameters": map[string]string{"callerPhone": caller},
		},
	})
	return b
}

// silenceMessage is one 20 ms media frame of mu-law silence.
func silenceMessage(streamSID string) []byte {
	frame := make([]byte, 160)
	for i := range frame {
		frame[i] = 0xFF
	}
	b, _ := json.Marshal(map[string]interface{}{
		"event":     "media",
		"streamSid": streamSID,
		"media":     map[string]string{"payload": base64.StdEncoding.EncodeToString(frame)},
	})
	return b
}

func stopMessage(streamSID string) []byte {
	return []byte(`{"event":"stop","streamSid":"` + streamSID + `"}`)
}

func mustParse(t *testing.T, data []byte) *Message {
	t.Helper()
	msg, err := ParseMessage(data)
	require.NoError(t, err)
	return msg
}

var errWriteFailed = errors.New("write failed")

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond, msg)
}
