package telephony

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

type State int

const (
	StateNew State = iota
	StateStarted
	StateActive
	StateStopping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateStarted:
		return "STARTED"
	case StateActive:
		return "ACTIVE"
	case StateStopping:
		return "STOPPING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CallStarter launches the pipeline of a new call.
type CallStarter interface {
	StartCall(ctx context.Context, p orchestrator.CallParams) (*orchestrator.Call, error)
}

// MediaStream drives one call's lifecycle from inbound protocol events. It
// is owned by the connection's read loop and is not safe for concurrent use.
type MediaStream struct {
	starter   CallStarter
	writer    orchestrator.FrameWriter
	onFailure func(error)
	logger    orchestrator.Logger
	metrics   orchestrator.Metrics

	state     State
	call      *orchestrator.Call
	streamSID string
	sessionID string
}

// StreamOptions carries the optional collaborators of a MediaStream.
type StreamOptions struct {
	Logger  orchestrator.Logger
	Metrics orchestrator.Metrics
	// OnFailure is handed to the call; it fires when the pipeline or egress
	// fails on its own.
	OnFailure func(error)
}

func NewMediaStream(starter CallStarter, writer orchestrator.FrameWriter, opts StreamOptions) *MediaStream {
	m := &MediaStream{
		starter:   starter,
		writer:    writer,
		onFailure: opts.OnFailure,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if m.logger == nil {
		m.logger = &orchestrator.NoOpLogger{}
	}
	if m.metrics == nil {
		m.metrics = orchestrator.NoOpMetrics{}
	}
	return m
}

func (m *MediaStream) State() State {
	return m.state
}

func (m *MediaStream) SessionID() string {
	return m.sessionID
}

// Call returns the running call, or nil before start.
func (m *MediaStream) Call() *orchestrator.Call {
	return m.call
}

// Handle applies one inbound event. A returned error is a transport error and
// the caller should disconnect.
func (m *MediaStream) Handle(ctx context.Context, msg *Message) error {
	switch msg.Event {
	case EventStart:
		return m.handleStart(ctx, msg)
	case EventMedia:
		return m.handleMedia(msg)
	case EventStop:
		m.handleStop()
		return nil
	case EventConnected, EventMark:
		return nil
	default:
		m.logger.Warn("ignoring unknown event", "event", msg.Event, "session_id", m.sessionID)
		return nil
	}
}

func (m *MediaStream) handleStart(ctx context.Context, msg *Message) error {
	if m.state != StateNew {
		m.logger.Warn("ignoring duplicate start", "session_id", m.sessionID, "state", m.state.String())
		return nil
	}
	if msg.Start == nil {
		return fmt.Errorf("%w: start event without payload", orchestrator.ErrTransport)
	}

	m.streamSID = msg.Start.StreamSID
	if m.streamSID == "" {
		m.streamSID = msg.StreamSID
	}
	m.sessionID = msg.Start.CallSID
	if m.sessionID == "" {
		m.sessionID = uuid.NewString()
	}
	callerID := msg.Start.CustomParameters["callerPhone"]
	if callerID == "" {
		callerID = "unknown"
	}

	m.state = StateStarted
	call, err := m.starter.StartCall(ctx, orchestrator.CallParams{
		SessionID: m.sessionID,
		CallerID:  callerID,
		StreamSID: m.streamSID,
		Writer:    m.writer,
		OnFailure: m.onFailure,
	})
	if err != nil {
		m.state = StateClosed
		return fmt.Errorf("start call %s: %w", m.sessionID, err)
	}
	m.call = call
	m.state = StateActive
	return nil
}

func (m *MediaStream) handleMedia(msg *Message) error {
	if m.state != StateActive {
		m.metrics.FrameDropped("no_active_session")
		return nil
	}
	mulaw, err := msg.Audio()
	if err != nil {
		return err
	}
	if err := m.call.PushAudio(audio.DecodeMulaw(mulaw)); err != nil && !errors.Is(err, orchestrator.ErrCallClosed) {
		return err
	}
	return nil
}

func (m *MediaStream) handleStop() {
	if m.state != StateActive {
		return
	}
	m.state = StateStopping
	status := m.call.Stop()
	m.state = StateClosed
	m.logger.Info("stream stopped", "session_id", m.sessionID, "status", status)
}

// Disconnect runs the abort path unless the stream already closed.
func (m *MediaStream) Disconnect() {
	if m.state == StateClosed {
		return
	}
	if m.call == nil {
		m.state = StateClosed
		return
	}
	m.state = StateStopping
	status := m.call.Abort()
	m.state = StateClosed
	m.logger.Info("stream disconnected", "session_id", m.sessionID, "status", status)
}

// Closed reports whether the stream reached its terminal state.
func (m *MediaStream) Closed() bool {
	return m.state == StateClosed
}
