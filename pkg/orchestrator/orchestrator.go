package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Orchestrator wires the providers into per-call pipelines and owns the
// session registry shared by all calls.
type Orchestrator struct {
	stt     StreamingSTTProvider
	engine  DialogueEngine
	tts     TTSProvider
	actions ActionDispatcher
	config  Config
	logger  Logger
	metrics Metrics

	registry *Registry
	turns    *TurnProcessor
	synth    *Synthesizer
	latency  *LatencyMonitor

	// pending tracks fire-and-forget action dispatches
	pending sync.WaitGroup
}

type Option func(*Orchestrator)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(o *Orchestrator) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

func WithActions(actions ActionDispatcher) Option {
	return func(o *Orchestrator) {
		if actions != nil {
			o.actions = actions
		}
	}
}

// New creates an orchestrator with the given providers.
func New(stt StreamingSTTProvider, engine DialogueEngine, tts TTSProvider, config Config, opts ...Option) (*Orchestrator, error) {
	switch {
	case stt == nil:
		return nil, fmt.Errorf("%w: stt", ErrNilProvider)
	case engine == nil:
		return nil, fmt.Errorf("%w: dialogue engine", ErrNilProvider)
	case tts == nil:
		return nil, fmt.Errorf("%w: tts", ErrNilProvider)
	}

	config = config.withDefaults()
	o := &Orchestrator{
		stt:     stt,
		engine:  engine,
		tts:     tts,
		actions: noOpActions{},
		config:  config,
		logger:  &NoOpLogger{},
		metrics: NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}

	o.registry = NewRegistry(config.MaxBufferMs, o.dispatchCallLog)
	o.turns = NewTurnProcessor(engine, config.LLMTimeout, o.logger)
	o.synth = NewSynthesizer(tts, config, o.logger)
	o.latency = NewLatencyMonitor(config.LatencyTarget, o.metrics, o.logger)
	return o, nil
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) ActiveSessions() int {
	return o.registry.Len()
}

func (o *Orchestrator) GetConfig() Config {
	return o.config
}

// GetProviders returns information about the current providers
func (o *Orchestrator) GetProviders() map[string]string {
	return map[string]string{
		"stt": o.stt.Name(),
		"llm": o.engine.Name(),
		"tts": o.tts.Name(),
	}
}

// Drain waits for outstanding action dispatches or for ctx to end.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchDirective fires the side effects a directive asks for.
func (o *Orchestrator) dispatchDirective(s *Session, utterance string, d *ResponseDirective) {
	if d.WantsBooking() {
		req := BookingRequest{
			SessionID:   s.ID,
			CallerID:    s.CallerID,
			Fields:      copyFields(d.Fields),
			RequestedAt: time.Now(),
		}
		o.dispatch("booking", s.ID, func(ctx context.Context) error {
			return o.actions.DispatchBooking(ctx, req)
		})
	}
	if d.WantsEscalation() {
		req := EscalationRequest{
			SessionID: s.ID,
			CallerID:  s.CallerID,
			Intent:    d.Intent,
			Utterance: utterance,
			Fields:    copyFields(d.Fields),
			RaisedAt:  time.Now(),
		}
		o.dispatch("escalation", s.ID, func(ctx context.Context) error {
			return o.actions.DispatchEscalation(ctx, req)
		})
	}
}

// dispatchCallLog is the registry close hook.
func (o *Orchestrator) dispatchCallLog(s *Session) {
	log := NewCallLog(s)
	o.dispatch("call_log", s.ID, func(ctx context.Context) error {
		return o.actions.DispatchCallLog(ctx, log)
	})
}

func (o *Orchestrator) dispatch(action, sessionID string, fn func(context.Context) error) {
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.config.ActionTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			o.logger.Error("action dispatch failed", "session_id", sessionID, "action", action, "error", err)
			return
		}
		o.logger.Debug("action dispatched", "session_id", sessionID, "action", action)
	}()
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type noOpActions struct{}

func (noOpActions) DispatchBooking(context.Context, BookingRequest) error       { return nil }
func (noOpActions) DispatchEscalation(context.Context, EscalationRequest) error { return nil }
func (noOpActions) DispatchCallLog(context.Context, CallLog) error              { return nil }
