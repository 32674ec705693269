package orchestrator

import (
	"context"
	"fmt"
	"strings"
)

// runPipeline is the pipeline actor: greeting, then transcription, turn
// processing and synthesis for each final utterance, strictly in order.
func (c *Call) runPipeline(ctx context.Context) {
	defer close(c.pipeDone)
	defer func() {
		if r := recover(); r != nil {
			c.o.metrics.StageError("pipeline")
			c.fail(fmt.Errorf("pipeline panic: %v", r))
		}
	}()

	events, err := c.o.stt.StreamTranscribe(ctx, c.inbound, c.o.config.Language)
	if err != nil {
		c.o.metrics.StageError("stt")
		c.fail(fmt.Errorf("%w: %v", ErrTranscriptionFailed, err))
		return
	}

	if greeting := c.o.config.Greeting; greeting != "" {
		c.session.AppendTurn(RoleAssistant, greeting)
		if err := c.speak(ctx, greeting, nil); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// The call now ends through stop or disconnect.
				if !c.stopping.Load() {
					c.o.logger.Warn("transcript stream ended", "session_id", c.session.ID, "stage", "stt")
				}
				return
			}
			text, ok := c.finalText(ev)
			if !ok {
				continue
			}
			if err := c.handleUtterance(ctx, text); err != nil {
				return
			}
		}
	}
}

// finalText filters the recognizer stream down to non-empty final utterances.
func (c *Call) finalText(ev TranscriptEvent) (string, bool) {
	if ev.Err != nil {
		c.o.metrics.StageError("stt")
		c.o.logger.Warn("transcription error, utterance lost", "session_id", c.session.ID, "stage", "stt", "error", ev.Err)
		return "", false
	}
	if !ev.Final {
		return "", false
	}
	text := strings.TrimSpace(ev.Text)
	return text, text != ""
}

// handleUtterance runs one turn. It returns an error only when the call can
// no longer deliver audio.
func (c *Call) handleUtterance(ctx context.Context, text string) error {
	timer := c.o.latency.Start(c.session)
	c.o.logger.Info("utterance finalized", "session_id", c.session.ID, "stage", "stt", "chars", len(text))

	directive, err := c.o.turns.Process(ctx, c.session, text)
	if err != nil {
		c.o.metrics.StageError("llm")
	}
	timer.Mark(StageLLMReady)
	c.o.logger.Info("directive ready", "session_id", c.session.ID, "stage", "llm", "intent", directive.Intent,
		"booking_complete", directive.BookingComplete, "needs_escalation", directive.NeedsEscalation)

	c.o.dispatchDirective(c.session, text, directive)

	err = c.speak(ctx, directive.Reply, timer)
	c.o.latency.Finish(timer)
	return err
}

// speak synthesizes text onto the outbound queue.
func (c *Call) speak(ctx context.Context, text string, timer *TurnTimer) error {
	res, err := c.o.synth.Synthesize(ctx, text, func(chunk AudioChunk) error {
		if timer != nil {
			timer.MarkAudio()
		}
		return c.enqueue(ctx, chunk.Data)
	})
	if res.Err != nil {
		c.o.metrics.StageError("tts")
		c.o.logger.Warn("reply degraded", "session_id", c.session.ID, "stage", "tts",
			"segments", res.Segments, "skipped", res.Skipped, "error", res.Err)
	}
	if err != nil {
		c.o.logger.Debug("synthesis interrupted", "session_id", c.session.ID, "stage", "tts", "error", err)
	}
	return err
}
