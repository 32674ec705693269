package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// Recorder implements orchestrator.Metrics with Prometheus instruments.
type Recorder struct {
	// StageLatency tracks per-turn durations (llm, tts, end_to_end).
	StageLatency *prometheus.HistogramVec
	// LatencyBreaches counts turns whose end-to-end latency exceeded the target.
	LatencyBreaches prometheus.Counter
	ActiveSessions  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	FramesDropped   *prometheus.CounterVec
	StageErrors     *prometheus.CounterVec
}

var _ orchestrator.Metrics = (*Recorder)(nil)

// NewRecorder registers the instruments with reg. A nil reg uses the default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "callstream_turn_stage_seconds",
			Help:    "Duration of each turn stage",
			Buckets: []float64{0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5, 8},
		}, []string{"stage"}),
		LatencyBreaches: f.NewCounter(prometheus.CounterOpts{
			Name: "callstream_latency_breaches_total",
			Help: "Turns whose end-to-end latency exceeded the target",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "callstream_active_sessions",
			Help: "Calls currently in progress",
		}),
		SessionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callstream_sessions_total",
			Help: "Closed calls by terminal status",
		}, []string{"status"}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callstream_frames_dropped_total",
			Help: "Inbound audio frames dropped by reason",
		}, []string{"reason"}),
		StageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callstream_stage_errors_total",
			Help: "Pipeline stage errors",
		}, []string{"stage"}),
	}
}

func (r *Recorder) ObserveLatency(stage string, d time.Duration) {
	r.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) LatencyBreach() {
	r.LatencyBreaches.Inc()
}

func (r *Recorder) SessionOpened() {
	r.ActiveSessions.Inc()
}

func (r *Recorder) SessionClosed(status orchestrator.CallStatus) {
	r.ActiveSessions.Dec()
	r.SessionsTotal.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) FrameDropped(reason string) {
	r.FramesDropped.WithLabelValues(reason).Inc()
}

func (r *Recorder) StageError(stage string) {
	r.StageErrors.WithLabelValues(stage).Inc()
}
