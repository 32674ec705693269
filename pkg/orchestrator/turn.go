package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FallbackReply is spoken when the dialogue engine cannot produce a directive.
const FallbackReply = "I apologize, I'm having trouble processing that right now. Could you please try again?"

// FallbackDirective returns the directive used when inference fails.
func FallbackDirective() *ResponseDirective {
	return &ResponseDirective{
		Intent: IntentOther,
		Reply:  FallbackReply,
		Fields: map[string]string{},
	}
}

// TurnProcessor runs one caller utterance through the dialogue engine.
type TurnProcessor struct {
	engine  DialogueEngine
	timeout time.Duration
	logger  Logger
}

func NewTurnProcessor(engine DialogueEngine, timeout time.Duration, logger Logger) *TurnProcessor {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &TurnProcessor{engine: engine, timeout: timeout, logger: logger}
}

// Process appends the caller turn, infers a directive from the full history
// and appends the assistant turn. It always returns a usable directive; on
// engine failure that is FallbackDirective and err wraps ErrDialogueFailed.
func (p *TurnProcessor) Process(ctx context.Context, session *Session, utterance string) (*ResponseDirective, error) {
	session.AppendTurn(RoleCaller, utterance)

	inferCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		inferCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	directive, err := p.engine.Infer(inferCtx, session.Turns())
	if err == nil && (directive == nil || strings.TrimSpace(directive.Reply) == "") {
		err = fmt.Errorf("empty directive from %s", p.engine.Name())
	}
	if err != nil {
		p.logger.Error("dialogue engine failed, using fallback", "session_id", session.ID, "engine", p.engine.Name(), "error", err)
		directive = FallbackDirective()
		err = fmt.Errorf("%w: %v", ErrDialogueFailed, err)
	}

	directive.Intent = ParseIntent(string(directive.Intent))
	if directive.Fields == nil {
		directive.Fields = map[string]string{}
	}

	session.ApplyDirective(directive)
	session.AppendTurn(RoleAssistant, directive.Reply)
	return directive, err
}
