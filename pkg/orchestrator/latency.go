package orchestrator

import "time"

// TurnTimer collects the stage timestamps of one turn.
type TurnTimer struct {
	session    *Session
	now        func() time.Time
	utterance  time.Time
	llmReady   time.Time
	firstAudio time.Time
	lastAudio  time.Time
}

// Mark records a stage boundary. Repeated first-audio marks are ignored;
// repeated last-audio marks move the boundary forward.
func (t *TurnTimer) Mark(stage LatencyStage) {
	at := t.now()
	switch stage {
	case StageUtteranceReceived:
		t.utterance = at
	case StageLLMReady:
		t.llmReady = at
	case StageFirstAudio:
		if !t.firstAudio.IsZero() {
			return
		}
		t.firstAudio = at
	case StageLastAudio:
		t.lastAudio = at
		// only the final last-audio mark is kept on the session
		return
	}
	t.session.RecordLatency(stage, at)
}

// MarkAudio marks an emitted audio chunk.
func (t *TurnTimer) MarkAudio() {
	t.Mark(StageFirstAudio)
	t.Mark(StageLastAudio)
}

// LatencyReport holds the derived durations of one turn.
type LatencyReport struct {
	LLM      time.Duration
	TTS      time.Duration
	EndToEnd time.Duration
	HasAudio bool
	Breached bool
}

// LatencyMonitor derives stage durations and flags turns over the target.
type LatencyMonitor struct {
	target  time.Duration
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

func NewLatencyMonitor(target time.Duration, metrics Metrics, logger Logger) *LatencyMonitor {
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &LatencyMonitor{target: target, metrics: metrics, logger: logger, now: time.Now}
}

// Start begins timing a turn at utterance-received.
func (m *LatencyMonitor) Start(session *Session) *TurnTimer {
	t := &TurnTimer{session: session, now: m.now}
	t.Mark(StageUtteranceReceived)
	return t
}

// Finish derives the turn's durations, records them and logs a breach.
// A turn that produced no audio reports only its LLM duration.
func (m *LatencyMonitor) Finish(t *TurnTimer) LatencyReport {
	var r LatencyReport
	if !t.llmReady.IsZero() {
		r.LLM = t.llmReady.Sub(t.utterance)
		m.metrics.ObserveLatency("llm", r.LLM)
	}
	if t.lastAudio.IsZero() {
		m.logger.Info("turn completed without audio", "session_id", t.session.ID, "llm_ms", r.LLM.Milliseconds())
		return r
	}

	t.session.RecordLatency(StageLastAudio, t.lastAudio)
	r.HasAudio = true
	r.TTS = t.lastAudio.Sub(t.llmReady)
	r.EndToEnd = t.lastAudio.Sub(t.utterance)
	t.session.recordEndToEnd(r.EndToEnd)
	m.metrics.ObserveLatency("tts", r.TTS)
	m.metrics.ObserveLatency("first_audio", t.firstAudio.Sub(t.utterance))
	m.metrics.ObserveLatency("end_to_end", r.EndToEnd)

	if m.target > 0 && r.EndToEnd > m.target {
		r.Breached = true
		m.metrics.LatencyBreach()
		m.logger.Warn("latency target exceeded",
			"session_id", t.session.ID,
			"end_to_end_ms", r.EndToEnd.Milliseconds(),
			"target_ms", m.target.Milliseconds(),
			"llm_ms", r.LLM.Milliseconds(),
			"tts_ms", r.TTS.Milliseconds())
		return r
	}
	m.logger.Debug("turn latency",
		"session_id", t.session.ID,
		"end_to_end_ms", r.EndToEnd.Milliseconds(),
		"llm_ms", r.LLM.Milliseconds(),
		"tts_ms", r.TTS.Milliseconds())
	return r
}
