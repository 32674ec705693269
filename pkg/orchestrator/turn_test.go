package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnProcessorAppendsBothTurns(t *testing.T) {
	engine := &funcEngine{fn: func(ctx context.Context, call int, history []Turn) (*ResponseDirective, error) {
		require.Len(t, history, 1)
		assert.Equal(t, RoleCaller, history[0].Role)
		return &ResponseDirective{Intent: "booking", Reply: "What day works for you?"}, nil
	}}
	p := NewTurnProcessor(engine, 0, nil)
	s := NewSession("CA1", "", "", 1000)

	d, err := p.Process(context.Background(), s, "I need an appointment")
	require.NoError(t, err)
	assert.Equal(t, IntentBooking, d.Intent)
	assert.NotNil(t, d.Fields)

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, Turn{Role: RoleCaller, Text: "I need an appointment", Timestamp: turns[0].Timestamp}, turns[0])
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, "What day works for you?", turns[1].Text)
}

func TestTurnProcessorFallback(t *testing.T) {
	engine := &funcEngine{fn: func(ctx context.Context, call int, history []Turn) (*ResponseDirective, error) {
		return nil, errors.New("upstream 503")
	}}
	p := NewTurnProcessor(engine, 0, nil)
	s := NewSession("CA1", "", "", 1000)

	d, err := p.Process(context.Background(), s, "hello?")
	assert.ErrorIs(t, err, ErrDialogueFailed)
	require.NotNil(t, d)
	assert.Equal(t, IntentOther, d.Intent)
	assert.Equal(t, FallbackReply, d.Reply)
	assert.False(t, d.BookingComplete)
	assert.False(t, d.NeedsEscalation)
	assert.Equal(t, FallbackReply, s.Turns()[1].Text)
}

func TestTurnProcessorEmptyReplyUsesFallback(t *testing.T) {
	engine := &funcEngine{fn: func(ctx context.Context, call int, history []Turn) (*ResponseDirective, error) {
		return &ResponseDirective{Intent: IntentFAQ, Reply: "  ", BookingComplete: true}, nil
	}}
	p := NewTurnProcessor(engine, 0, nil)
	s := NewSession("CA1", "", "", 1000)

	d, err := p.Process(context.Background(), s, "hours?")
	assert.ErrorIs(t, err, ErrDialogueFailed)
	assert.Equal(t, FallbackReply, d.Reply)
	assert.False(t, d.BookingComplete)
}

func TestTurnOrderAlternates(t *testing.T) {
	p := NewTurnProcessor(replyEngine("ok", IntentFAQ), 0, nil)
	s := NewSession("CA1", "", "", 1000)

	for _, u := range []string{"t1", "t2", "t3"} {
		_, err := p.Process(context.Background(), s, u)
		require.NoError(t, err)
	}

	turns := s.Turns()
	require.Len(t, turns, 6)
	var callers []string
	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, RoleCaller, turn.Role)
			callers = append(callers, turn.Text)
		} else {
			assert.Equal(t, RoleAssistant, turn.Role)
		}
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, callers)
}
