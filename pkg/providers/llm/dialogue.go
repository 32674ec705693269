package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// MissingMessageReply is spoken when the engine returns a directive without a message.
const MissingMessageReply = "I apologize, I didn't quite understand that. Could you please rephrase?"

// Business describes the business the receptionist answers for.
type Business struct {
	Name     string
	Type     string
	Phone    string
	Address  string
	Hours    []string
	Services []string
	Pricing  []string
}

func DefaultBusiness() Business {
	return Business{
		Name:    "HealthFirst Clinic",
		Type:    "healthcare",
		Phone:   "+911234567890",
		Address: "123 MG Road, Bangalore, Karnataka 560001",
		Hours: []string{
			"Monday-Friday: 9:00 AM - 6:00 PM",
			"Saturday: 10:00 AM - 2:00 PM",
			"Sunday: Closed",
		},
		Services: []string{"General consultation", "Blood tests", "X-ray", "ECG", "Vaccinations"},
		Pricing: []string{
			"Consultation: ₹500",
			"Blood test: ₹800-2000",
			"X-ray: ₹1200",
			"ECG: ₹600",
			"Vaccination: ₹300-1500",
		},
	}
}

// SystemPrompt renders the receptionist instructions for the given day.
func SystemPrompt(b Business, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are Zylin, a professional AI receptionist for %s. Today is %s.\n\n", b.Name, now.Format("Monday, January 02, 2006"))
	sb.WriteString("Business information:\n")
	fmt.Fprintf(&sb, "- Name: %s\n- Type: %s\n- Phone: %s\n- Address: %s\n\n", b.Name, b.Type, b.Phone, b.Address)
	writeList(&sb, "Hours", b.Hours)
	writeList(&sb, "Services", b.Services)
	writeList(&sb, "Pricing", b.Pricing)
	sb.WriteString(`Your role:
1. Answer caller questions clearly and concisely.
2. Book appointments by collecting the caller's name, phone number, preferred date and preferred time.
3. Identify urgent matters that need the owner's immediate attention.

Keep responses to one to three sentences and ask one question at a time.
Confirm details before finalizing a booking. Never make up information you don't have.
`)
	fmt.Fprintf(&sb, "Convert relative dates to YYYY-MM-DD (tomorrow is %s) and times to 24-hour HH:MM.\n\n", now.AddDate(0, 0, 1).Format("2006-01-02"))
	sb.WriteString(`Classify the conversation as one of: faq (hours, location, services, pricing), booking (appointment scheduling), urgent (emergencies, complaints, anything needing the owner), other.

Respond ONLY with a JSON object of this shape:
{
  "intent": "faq|booking|urgent|other",
  "message": "your natural language reply to the caller",
  "extracted_data": {"name": "", "phone": "", "date": "", "time": "", "notes": "", "issue_summary": ""},
  "booking_complete": true only when name, phone, date and time are all collected,
  "needs_escalation": true when urgent
}
`)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
	sb.WriteString("\n")
}

// StructuredDialogue turns a chat-completion provider into a DialogueEngine by
// asking for a JSON directive and parsing the answer.
type StructuredDialogue struct {
	llm    orchestrator.LLMProvider
	prompt func(now time.Time) string
	now    func() time.Time
}

// NewStructuredDialogue wraps llm. A non-empty systemPrompt replaces the
// built-in receptionist prompt.
func NewStructuredDialogue(llm orchestrator.LLMProvider, business Business, systemPrompt string) *StructuredDialogue {
	d := &StructuredDialogue{llm: llm, now: time.Now}
	if systemPrompt != "" {
		d.prompt = func(time.Time) string { return systemPrompt }
	} else {
		d.prompt = func(now time.Time) string { return SystemPrompt(business, now) }
	}
	return d
}

func (d *StructuredDialogue) Infer(ctx context.Context, history []orchestrator.Turn) (*orchestrator.ResponseDirective, error) {
	messages := make([]orchestrator.Message, 0, len(history)+1)
	messages = append(messages, orchestrator.Message{Role: "system", Content: d.prompt(d.now())})
	for _, t := range history {
		role := "user"
		if t.Role == orchestrator.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, orchestrator.Message{Role: role, Content: t.Text})
	}

	raw, err := d.llm.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	return ParseDirective(raw)
}

func (d *StructuredDialogue) Name() string {
	return "structured:" + d.llm.Name()
}

type rawDirective struct {
	Intent          string                     `json:"intent"`
	Message         string                     `json:"message"`
	ExtractedData   map[string]json.RawMessage `json:"extracted_data"`
	BookingComplete bool                       `json:"booking_complete"`
	NeedsEscalation bool                       `json:"needs_escalation"`
}

// ParseDirective decodes the JSON answer of a chat model. Markdown code fences
// around the object are tolerated; null and empty extracted values are dropped.
func ParseDirective(raw string) (*orchestrator.ResponseDirective, error) {
	body := stripFences(raw)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var rd rawDirective
	if err := json.Unmarshal([]byte(body), &rd); err != nil {
		return nil, fmt.Errorf("decode directive: %w", err)
	}

	dir := &orchestrator.ResponseDirective{
		Intent:          orchestrator.ParseIntent(rd.Intent),
		Reply:           strings.TrimSpace(rd.Message),
		Fields:          make(map[string]string, len(rd.ExtractedData)),
		BookingComplete: rd.BookingComplete,
		NeedsEscalation: rd.NeedsEscalation,
	}
	if dir.Reply == "" {
		dir.Reply = MissingMessageReply
	}
	for k, v := range rd.ExtractedData {
		if s := fieldString(v); s != "" {
			dir.Fields[k] = s
		}
	}
	return dir, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func fieldString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}
