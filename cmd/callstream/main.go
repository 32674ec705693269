package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/lokutor-callstream/internal/config"
	xlog "github.com/lokutor-ai/lokutor-callstream/internal/log"
	"github.com/lokutor-ai/lokutor-callstream/internal/metrics"
	"github.com/lokutor-ai/lokutor-callstream/internal/server"
	"github.com/lokutor-ai/lokutor-callstream/pkg/actions"
	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

func main() {
	configPath := flag.String("config", os.Getenv("CALLSTREAM_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "callstream:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	xlog.Configure(xlog.Config{Level: cfg.LogLevel, Service: "callstream"})
	logger := xlog.WithComponent("main")
	appLogger := xlog.NewAdapter(xlog.WithComponent("orchestrator"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildProviders(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}
	defer p.close()

	dispatchers := []orchestrator.ActionDispatcher{actions.NewLogDispatcher(xlog.NewAdapter(xlog.WithComponent("actions")))}
	if cfg.Actions.SQLitePath != "" {
		recorder, err := actions.OpenSQLite(cfg.Actions.SQLitePath)
		if err != nil {
			return fmt.Errorf("open call store: %w", err)
		}
		defer recorder.Close()
		dispatchers = append(dispatchers, recorder)
	}

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	orch, err := orchestrator.New(p.stt, p.engine, p.tts, cfg.Pipeline(),
		orchestrator.WithLogger(appLogger),
		orchestrator.WithMetrics(recorder),
		orchestrator.WithActions(actions.NewFanout(dispatchers...)),
	)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	providers := orch.GetProviders()
	logger.Info().
		Str("mode", cfg.Mode).
		Str("stt", providers["stt"]).
		Str("llm", providers["llm"]).
		Str("tts", providers["tts"]).
		Str("addr", cfg.Addr).
		Msg("callstream starting")

	srv := server.New(server.Config{
		Addr:              cfg.Addr,
		PublicURL:         cfg.PublicURL,
		MediaPath:         cfg.MediaPath,
		RequestsPerMinute: cfg.Webhook.RequestsPerMinute,
	}, orch, xlog.NewAdapter(xlog.WithComponent("http")), recorder, prometheus.DefaultGatherer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Hijacked media connections are not tracked by http.Server.Shutdown.
		waitForCalls(orch, cfg.Pipeline.PipelineGrace+cfg.Pipeline.EgressGrace)
		// Let in-flight call logs and bookings land before the store closes.
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.ActionTimeout+time.Second)
		defer cancel()
		if err := orch.Drain(drainCtx); err != nil {
			logger.Warn().Err(err).Msg("action drain incomplete")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("callstream stopped")
	return nil
}

func waitForCalls(orch *orchestrator.Orchestrator, timeout time.Duration) {
	deadline := time.After(timeout)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for orch.ActiveSessions() > 0 {
		select {
		case <-deadline:
			return
		case <-tick.C:
		}
	}
}
