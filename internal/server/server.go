// Package server exposes the gateway over HTTP: the media-stream WebSocket,
// the incoming-call webhook, health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
	"github.com/lokutor-ai/lokutor-callstream/pkg/telephony"
)

// Gateway is the part of the orchestrator the HTTP surface needs.
type Gateway interface {
	telephony.CallStarter
	ActiveSessions() int
	GetProviders() map[string]string
}

type Config struct {
	Addr              string
	PublicURL         string
	MediaPath         string
	RequestsPerMinute int
	ShutdownTimeout   time.Duration
}

type Server struct {
	cfg     Config
	gateway Gateway
	logger  orchestrator.Logger
	metrics orchestrator.Metrics
	gather  prometheus.Gatherer
	started time.Time
	srv     *http.Server
}

func New(cfg Config, gateway Gateway, logger orchestrator.Logger, metrics orchestrator.Metrics, gather prometheus.Gatherer) *Server {
	if cfg.MediaPath == "" {
		cfg.MediaPath = "/media"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	if gather == nil {
		gather = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:     cfg,
		gateway: gateway,
		logger:  logger,
		metrics: metrics,
		gather:  gather,
		started: time.Now(),
	}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	r.Handle(s.cfg.MediaPath, telephony.NewHandler(s.gateway, s.logger, s.metrics))

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RequestsPerMinute, time.Minute))
		r.Post("/twilio/voice", telephony.NewVoiceWebhook(s.cfg.PublicURL, s.cfg.MediaPath, s.logger).ServeHTTP)
	})
	return r
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
		}),
	)
}

type healthResponse struct {
	Status         string            `json:"status"`
	ActiveSessions int               `json:"active_sessions"`
	Providers      map[string]string `json:"providers"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:         "ok",
		ActiveSessions: s.gateway.ActiveSessions(),
		Providers:      s.gateway.GetProviders(),
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr, "media_path", s.cfg.MediaPath)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
