package llm

import (
	"context"
	"regexp"
	"strings"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

var (
	phonePattern = regexp.MustCompile(`\+?\d[\d\s-]{6,}\d`)
	namePattern  = regexp.MustCompile(`(?i)\bmy name is ([a-z]+)`)
)

// MockDialogue is a keyword-driven engine for local runs without an LLM.
// A booking completes once a name and a phone number have been heard.
type MockDialogue struct{}

func NewMockDialogue() *MockDialogue {
	return &MockDialogue{}
}

func (m *MockDialogue) Infer(ctx context.Context, history []orchestrator.Turn) (*orchestrator.ResponseDirective, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var last string
	fields := map[string]string{}
	booking := false
	for _, t := range history {
		if t.Role != orchestrator.RoleCaller {
			continue
		}
		last = strings.ToLower(t.Text)
		if containsAny(last, "appointment", "book", "schedule") {
			booking = true
		}
		if match := namePattern.FindStringSubmatch(t.Text); match != nil {
			fields["name"] = match[1]
		}
		if match := phonePattern.FindString(t.Text); match != "" {
			fields["phone"] = strings.NewReplacer(" ", "", "-", "").Replace(match)
		}
	}

	switch {
	case containsAny(last, "emergency", "urgent", "complaint"):
		fields["issue_summary"] = last
		return &orchestrator.ResponseDirective{
			Intent:          orchestrator.IntentUrgent,
			Reply:           "I understand this is urgent. I'm alerting the owner right now and they will call you back shortly.",
			Fields:          fields,
			NeedsEscalation: true,
		}, nil
	case booking:
		dir := &orchestrator.ResponseDirective{Intent: orchestrator.IntentBooking, Fields: fields}
		switch {
		case fields["name"] == "":
			dir.Reply = "I'd be happy to book that for you. May I have your name, please?"
		case fields["phone"] == "":
			dir.Reply = "Thanks, " + fields["name"] + ". What's the best phone number to reach you?"
		default:
			dir.Reply = "You're all set, " + fields["name"] + ". We'll send a confirmation shortly."
			dir.BookingComplete = true
		}
		return dir, nil
	case containsAny(last, "hours", "open", "price", "cost", "where"):
		return &orchestrator.ResponseDirective{
			Intent: orchestrator.IntentFAQ,
			Reply:  "We're open nine to six on weekdays and ten to two on Saturdays. A consultation is five hundred rupees.",
			Fields: fields,
		}, nil
	default:
		return &orchestrator.ResponseDirective{
			Intent: orchestrator.IntentOther,
			Reply:  "Sure. Is there anything I can help you with, like booking an appointment?",
			Fields: fields,
		}, nil
	}
}

func (m *MockDialogue) Name() string {
	return "mock-dialogue"
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
