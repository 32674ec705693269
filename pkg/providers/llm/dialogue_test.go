package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

type capturingLLM struct {
	reply    string
	err      error
	messages []orchestrator.Message
}

func (c *capturingLLM) Complete(_ context.Context, messages []orchestrator.Message) (string, error) {
	c.messages = messages
	return c.reply, c.err
}

func (c *capturingLLM) Name() string { return "capture" }

func TestParseDirective(t *testing.T) {
	raw := "```json\n" + `{
		"intent": "booking",
		"message": "What time works for you?",
		"extracted_data": {"name": "Priya", "phone": null, "date": "2026-10-20", "notes": "", "count": 2},
		"booking_complete": false,
		"needs_escalation": false
	}` + "\n```"

	dir, err := ParseDirective(raw)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.IntentBooking, dir.Intent)
	assert.Equal(t, "What time works for you?", dir.Reply)
	assert.Equal(t, map[string]string{"name": "Priya", "date": "2026-10-20", "count": "2"}, dir.Fields)
	assert.False(t, dir.BookingComplete)
}

func TestParseDirectiveDefaults(t *testing.T) {
	dir, err := ParseDirective(`{"intent": "weather"}`)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.IntentOther, dir.Intent)
	assert.Equal(t, MissingMessageReply, dir.Reply)
	assert.NotNil(t, dir.Fields)
}

func TestParseDirectiveRejectsProse(t *testing.T) {
	_, err := ParseDirective("Sure, I can help with that.")
	assert.Error(t, err)
}

func TestStructuredDialogueInfer(t *testing.T) {
	llm := &capturingLLM{reply: `{"intent":"urgent","message":"Alerting the owner.","extracted_data":{"issue_summary":"water leak"},"needs_escalation":true}`}
	d := NewStructuredDialogue(llm, DefaultBusiness(), "")
	d.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }

	history := []orchestrator.Turn{
		{Role: orchestrator.RoleAssistant, Text: "Hello!"},
		{Role: orchestrator.RoleCaller, Text: "There's a water leak"},
	}
	dir, err := d.Infer(context.Background(), history)
	require.NoError(t, err)

	assert.Equal(t, orchestrator.IntentUrgent, dir.Intent)
	assert.True(t, dir.NeedsEscalation)
	assert.Equal(t, "water leak", dir.Fields["issue_summary"])

	require.Len(t, llm.messages, 3)
	assert.Equal(t, "system", llm.messages[0].Role)
	assert.Contains(t, llm.messages[0].Content, "HealthFirst Clinic")
	assert.Contains(t, llm.messages[0].Content, "Monday, October 19, 2026")
	assert.Contains(t, llm.messages[0].Content, "2026-10-20")
	assert.Equal(t, "assistant", llm.messages[1].Role)
	assert.Equal(t, "user", llm.messages[2].Role)
	assert.Equal(t, "structured:capture", d.Name())
}

func TestStructuredDialogueCustomPrompt(t *testing.T) {
	llm := &capturingLLM{reply: `{"intent":"faq","message":"We open at nine."}`}
	d := NewStructuredDialogue(llm, Business{}, "custom prompt")

	_, err := d.Infer(context.Background(), []orchestrator.Turn{{Role: orchestrator.RoleCaller, Text: "hours?"}})
	require.NoError(t, err)
	assert.Equal(t, "custom prompt", llm.messages[0].Content)
}

func TestStructuredDialogueProviderError(t *testing.T) {
	boom := errors.New("boom")
	d := NewStructuredDialogue(&capturingLLM{err: boom}, DefaultBusiness(), "")

	_, err := d.Infer(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}
