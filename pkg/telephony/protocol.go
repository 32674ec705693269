// Package telephony speaks the media-stream protocol: JSON events carrying
// base64 mu-law audio over a WebSocket, one call per connection.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
)

// Message is one inbound protocol event. Only the payload matching Event is set.
type Message struct {
	Event          string        `json:"event"`
	StreamSID      string        `json:"streamSid,omitempty"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
}

type StartPayload struct {
	StreamSID        string            `json:"streamSid,omitempty"`
	CallSID          string            `json:"callSid"`
	AccountSID       string            `json:"accountSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      *MediaFormat      `json:"mediaFormat,omitempty"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type StopPayload struct {
	CallSID string `json:"callSid,omitempty"`
}

// OutboundMedia is the frame written back to the transport.
type OutboundMedia struct {
	Event     string          `json:"event"`
	StreamSID string          `json:"streamSid"`
	Media     OutboundPayload `json:"media"`
}

type OutboundPayload struct {
	Payload string `json:"payload"`
}

// NewOutboundMedia wraps one mu-law frame.
func NewOutboundMedia(streamSID string, mulaw []byte) OutboundMedia {
	return OutboundMedia{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     OutboundPayload{Payload: base64.StdEncoding.EncodeToString(mulaw)},
	}
}

// ParseMessage decodes one inbound event. Malformed JSON and messages without
// an event tag are transport errors.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: decode message: %v", orchestrator.ErrTransport, err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("%w: message without event", orchestrator.ErrTransport)
	}
	return &msg, nil
}

// Audio returns the decoded mu-law bytes of a media event.
func (m *Message) Audio() ([]byte, error) {
	if m.Media == nil {
		return nil, fmt.Errorf("%w: media event without payload", orchestrator.ErrTransport)
	}
	data, err := base64.StdEncoding.DecodeString(m.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode media payload: %v", orchestrator.ErrTransport, err)
	}
	return data, nil
}
