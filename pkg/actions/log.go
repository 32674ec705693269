// Package actions contains ActionDispatcher implementations: a log-only dry
// run, a SQLite recorder and a fan-out combining several dispatchers.
package actions

import (
	"context"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// LogDispatcher records every action as a log line and performs nothing.
type LogDispatcher struct {
	logger orchestrator.Logger
}

func NewLogDispatcher(logger orchestrator.Logger) *LogDispatcher {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) DispatchBooking(ctx context.Context, req orchestrator.BookingRequest) error {
	d.logger.Info("booking requested",
		"session_id", req.SessionID,
		"caller_id", req.CallerID,
		"name", req.Fields["name"],
		"date", req.Fields["date"],
		"time", req.Fields["time"],
	)
	return nil
}

func (d *LogDispatcher) DispatchEscalation(ctx context.Context, req orchestrator.EscalationRequest) error {
	d.logger.Warn("escalation raised",
		"session_id", req.SessionID,
		"caller_id", req.CallerID,
		"intent", req.Intent,
		"utterance", req.Utterance,
		"issue_summary", req.Fields["issue_summary"],
	)
	return nil
}

func (d *LogDispatcher) DispatchCallLog(ctx context.Context, log orchestrator.CallLog) error {
	d.logger.Info("call log",
		"session_id", log.SessionID,
		"caller_id", log.CallerID,
		"status", log.Status,
		"intent", log.Intent,
		"duration_ms", log.Duration.Milliseconds(),
		"turns", len(log.Transcript),
		"booking_made", log.BookingMade,
		"escalated", log.Escalated,
		"summary", log.Summary,
	)
	return nil
}
