package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// forceExitWait bounds how long shutdown waits for an actor after cancelling it.
const forceExitWait = time.Second

// CallParams identifies a call and where its audio goes.
type CallParams struct {
	SessionID string
	CallerID  string
	StreamSID string
	Writer    FrameWriter
	// OnFailure is invoked at most once when the pipeline or egress fails on
	// its own. The transport should respond by running its disconnect path.
	OnFailure func(error)
}

// Call runs the actors of one active session: the pipeline and the egress
// sender. The transport read loop owns the Call and is the only caller of
// PushAudio, Stop and Abort.
type Call struct {
	o         *Orchestrator
	session   *Session
	writer    FrameWriter
	onFailure func(error)

	inbound  chan []byte
	outbound chan outboundItem

	pipeCancel   context.CancelFunc
	egressCancel context.CancelFunc
	pipeDone     chan struct{}
	egressDone   chan struct{}

	mu            sync.Mutex
	inboundClosed bool

	stopping  atomic.Bool
	aborting  atomic.Bool
	failed    atomic.Bool
	failOnce  sync.Once
	closeOnce sync.Once
}

// StartCall registers a session and launches its pipeline and egress actors.
func (o *Orchestrator) StartCall(ctx context.Context, p CallParams) (*Call, error) {
	if p.Writer == nil {
		return nil, fmt.Errorf("%w: frame writer", ErrNilProvider)
	}
	session, err := o.registry.Create(p.SessionID, p.CallerID, p.StreamSID)
	if err != nil {
		return nil, err
	}
	o.metrics.SessionOpened()

	c := &Call{
		o:          o,
		session:    session,
		writer:     p.Writer,
		onFailure:  p.OnFailure,
		inbound:    make(chan []byte, o.config.InboundQueueSize),
		outbound:   make(chan outboundItem, o.config.OutboundQueueSize),
		pipeDone:   make(chan struct{}),
		egressDone: make(chan struct{}),
	}

	pipeCtx, pipeCancel := context.WithCancel(ctx)
	egressCtx, egressCancel := context.WithCancel(ctx)
	c.pipeCancel = pipeCancel
	c.egressCancel = egressCancel

	o.logger.Info("call started", "session_id", session.ID, "caller", session.CallerID, "stream_sid", session.StreamSID)

	go c.runEgress(egressCtx)
	go c.runPipeline(pipeCtx)
	return c, nil
}

func (c *Call) Session() *Session {
	return c.session
}

// PushAudio buffers decoded caller PCM and offers it to the pipeline without
// blocking. When the inbound queue is full the frame is dropped.
func (c *Call) PushAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inboundClosed {
		return ErrCallClosed
	}
	c.session.AddAudio(pcm)
	select {
	case c.inbound <- pcm:
	default:
		c.o.metrics.FrameDropped("inbound_full")
	}
	return nil
}

// Stop ends the call gracefully: the pipeline gets its grace period to finish
// the last utterance and the egress sender its grace period to flush.
func (c *Call) Stop() CallStatus {
	return c.shutdown(true)
}

// Abort ends the call after a transport disconnect. The pipeline is cancelled
// immediately; queued audio still gets the egress grace period.
func (c *Call) Abort() CallStatus {
	return c.shutdown(false)
}

func (c *Call) shutdown(graceful bool) CallStatus {
	c.closeOnce.Do(func() {
		c.stopping.Store(true)
		c.aborting.Store(!graceful)
		cfg := c.o.config

		c.mu.Lock()
		c.inboundClosed = true
		close(c.inbound)
		c.mu.Unlock()

		pipelineGrace := cfg.PipelineGrace
		if !graceful {
			pipelineGrace = 0
		}
		c.await(c.pipeDone, pipelineGrace, c.pipeCancel, "pipeline")

		deadline := time.Now().Add(cfg.EgressGrace)
		sentinel := time.NewTimer(cfg.EgressGrace)
		select {
		case c.outbound <- outboundItem{close: true}:
		case <-c.egressDone:
		case <-sentinel.C:
		}
		sentinel.Stop()
		c.await(c.egressDone, time.Until(deadline), c.egressCancel, "egress")

		c.pipeCancel()
		c.egressCancel()

		status := StatusAbandoned
		switch {
		case c.failed.Load():
			status = StatusFailed
		case graceful:
			status = StatusCompleted
		}
		c.o.registry.Close(c.session.ID, status)
		c.o.metrics.SessionClosed(status)
		c.o.logger.Info("call closed", "session_id", c.session.ID, "status", status)
	})
	return c.session.Status()
}

// await waits up to grace for done, then cancels the actor and waits a
// bounded time for it to exit. It reports whether the actor finished on its own.
func (c *Call) await(done <-chan struct{}, grace time.Duration, cancel context.CancelFunc, actor string) bool {
	select {
	case <-done:
		return true
	default:
	}
	if grace > 0 {
		t := time.NewTimer(grace)
		select {
		case <-done:
			t.Stop()
			return true
		case <-t.C:
			c.o.logger.Warn("grace period elapsed, cancelling", "session_id", c.session.ID, "actor", actor, "grace", grace)
		}
	}
	cancel()
	t := time.NewTimer(forceExitWait)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		c.o.logger.Error("actor did not exit after cancel", "session_id", c.session.ID, "actor", actor)
	}
	return false
}

// fail records an actor failure and notifies the transport once.
func (c *Call) fail(err error) {
	c.failOnce.Do(func() {
		c.failed.Store(true)
		c.o.logger.Error("call failed", "session_id", c.session.ID, "error", err)
		if c.onFailure != nil {
			c.onFailure(err)
		}
	})
}

func (c *Call) runEgress(ctx context.Context) {
	defer close(c.egressDone)
	e := &Egress{
		writer:    c.writer,
		streamSID: c.session.StreamSID,
		queue:     c.outbound,
		logger:    c.o.logger,
	}
	sent, err := e.Run(ctx)
	switch {
	case err == nil || ctx.Err() != nil:
	case c.aborting.Load():
		// The transport is already gone; unsent audio is expected.
		c.o.logger.Debug("egress stopped on disconnect", "session_id", c.session.ID, "error", err)
	default:
		c.o.metrics.StageError("egress")
		c.fail(err)
	}
	c.o.logger.Debug("egress finished", "session_id", c.session.ID, "frames", sent)
}

// enqueue blocks until the frame is queued, egress has stopped, or ctx ends.
func (c *Call) enqueue(ctx context.Context, payload []byte) error {
	select {
	case c.outbound <- outboundItem{payload: payload}:
		return nil
	case <-c.egressDone:
		return ErrCallClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
