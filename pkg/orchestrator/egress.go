package orchestrator

import (
	"context"
	"fmt"
)

// outboundItem is one entry on a call's outbound queue. A close item is the
// sentinel that ends the egress loop.
type outboundItem struct {
	payload []byte
	close   bool
}

// Egress drains a call's outbound queue in order onto the transport.
type Egress struct {
	writer    FrameWriter
	streamSID string
	queue     <-chan outboundItem
	logger    Logger
}

// Run writes frames until the close sentinel arrives, ctx ends, or a write
// fails. Write failures are not retried.
func (e *Egress) Run(ctx context.Context) (sent int, err error) {
	for {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case item := <-e.queue:
			if item.close {
				return sent, nil
			}
			if err := e.writer.WriteFrame(ctx, e.streamSID, item.payload); err != nil {
				return sent, fmt.Errorf("%w: %v", ErrTransport, err)
			}
			sent++
		}
	}
}
