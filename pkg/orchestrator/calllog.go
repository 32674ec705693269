package orchestrator

import (
	"fmt"
	"time"
)

type CallStatus string

const (
	StatusCompleted CallStatus = "completed"
	StatusFailed    CallStatus = "failed"
	StatusAbandoned CallStatus = "abandoned"
)

// CallLog is the terminal record of a call, dispatched once when its session closes.
type CallLog struct {
	SessionID       string        `json:"session_id"`
	CallerID        string        `json:"caller_id"`
	StreamSID       string        `json:"stream_sid"`
	StartedAt       time.Time     `json:"started_at"`
	EndedAt         time.Time     `json:"ended_at"`
	Duration        time.Duration `json:"duration"`
	Intent          Intent        `json:"intent"`
	Transcript      []Turn        `json:"transcript"`
	Summary         string        `json:"summary"`
	BookingMade     bool          `json:"booking_made"`
	Escalated       bool          `json:"escalated"`
	Status          CallStatus    `json:"status"`
	AvgLatency      time.Duration `json:"avg_latency"`
	BufferedAudioMs float64       `json:"buffered_audio_ms"`
}

type BookingRequest struct {
	SessionID   string            `json:"session_id"`
	CallerID    string            `json:"caller_id"`
	Fields      map[string]string `json:"fields"`
	RequestedAt time.Time         `json:"requested_at"`
}

type EscalationRequest struct {
	SessionID string            `json:"session_id"`
	CallerID  string            `json:"caller_id"`
	Intent    Intent            `json:"intent"`
	Utterance string            `json:"utterance"`
	Fields    map[string]string `json:"fields,omitempty"`
	RaisedAt  time.Time         `json:"raised_at"`
}

// NewCallLog snapshots a session into its terminal record.
func NewCallLog(s *Session) CallLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ended := s.endedAt
	if ended.IsZero() {
		ended = time.Now()
	}

	var avg time.Duration
	if len(s.endToEnd) > 0 {
		var total time.Duration
		for _, d := range s.endToEnd {
			total += d
		}
		avg = total / time.Duration(len(s.endToEnd))
	}

	transcript := make([]Turn, len(s.turns))
	copy(transcript, s.turns)

	return CallLog{
		SessionID:       s.ID,
		CallerID:        s.CallerID,
		StreamSID:       s.StreamSID,
		StartedAt:       s.CreatedAt,
		EndedAt:         ended,
		Duration:        ended.Sub(s.CreatedAt),
		Intent:          s.lastIntent,
		Transcript:      transcript,
		Summary:         fmt.Sprintf("Streaming call, %d messages, avg latency %d ms", len(s.turns), avg.Milliseconds()),
		BookingMade:     s.booked,
		Escalated:       s.escalated,
		Status:          s.status,
		AvgLatency:      avg,
		BufferedAudioMs: s.buffer.DurationMs(),
	}
}
