package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// Fanout forwards every action to each dispatcher in order. All dispatchers
// run even when an earlier one fails; the failures are joined.
type Fanout struct {
	dispatchers []orchestrator.ActionDispatcher
}

func NewFanout(dispatchers ...orchestrator.ActionDispatcher) *Fanout {
	out := make([]orchestrator.ActionDispatcher, 0, len(dispatchers))
	for _, d := range dispatchers {
		if d != nil {
			out = append(out, d)
		}
	}
	return &Fanout{dispatchers: out}
}

func (f *Fanout) DispatchBooking(ctx context.Context, req orchestrator.BookingRequest) error {
	return f.each(func(d orchestrator.ActionDispatcher) error {
		return d.DispatchBooking(ctx, req)
	})
}

func (f *Fanout) DispatchEscalation(ctx context.Context, req orchestrator.EscalationRequest) error {
	return f.each(func(d orchestrator.ActionDispatcher) error {
		return d.DispatchEscalation(ctx, req)
	})
}

func (f *Fanout) DispatchCallLog(ctx context.Context, log orchestrator.CallLog) error {
	return f.each(func(d orchestrator.ActionDispatcher) error {
		return d.DispatchCallLog(ctx, log)
	})
}

func (f *Fanout) each(fn func(orchestrator.ActionDispatcher) error) error {
	var errs []error
	for i, d := range f.dispatchers {
		if err := fn(d); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
