package orchestrator

import (
	"context"
	"strings"
	"time"
)

type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// StreamingSTTProvider turns a stream of 16-bit PCM at the transport rate into
// transcript events. The returned channel is closed once the audio channel is
// closed and the engine has flushed, or when ctx is cancelled. It is not
// restartable.
type StreamingSTTProvider interface {
	StreamTranscribe(ctx context.Context, audio <-chan []byte, lang Language) (<-chan TranscriptEvent, error)
	Name() string
}

// STTProvider transcribes one complete utterance.
type STTProvider interface {
	Transcribe(ctx context.Context, audio []byte, lang Language) (string, error)
	Name() string
}

type LLMProvider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// DialogueEngine infers the next assistant directive from the full call history.
type DialogueEngine interface {
	Infer(ctx context.Context, history []Turn) (*ResponseDirective, error)
	Name() string
}

// TTSProvider streams 16-bit mono PCM at SampleRate() to onChunk. Chunk
// boundaries are arbitrary and may split a sample.
type TTSProvider interface {
	StreamSynthesize(ctx context.Context, text string, voice Voice, lang Language, onChunk func([]byte) error) error
	SampleRate() int
	Name() string
}

type VADProvider interface {
	Process(chunk []byte) (*VADEvent, error)
	Reset()
	Clone() VADProvider
	Name() string
}

type VADEventType string

const (
	VADSpeechStart VADEventType = "SPEECH_START"
	VADSpeechEnd   VADEventType = "SPEECH_END"
	VADSilence     VADEventType = "SILENCE"
)

type VADEvent struct {
	Type      VADEventType
	Timestamp int64
}

// ActionDispatcher receives the side effects a call produces. The pipeline
// never waits on it.
type ActionDispatcher interface {
	DispatchBooking(ctx context.Context, req BookingRequest) error
	DispatchEscalation(ctx context.Context, req EscalationRequest) error
	DispatchCallLog(ctx context.Context, log CallLog) error
}

// FrameWriter writes one outbound mu-law frame to the transport.
type FrameWriter interface {
	WriteFrame(ctx context.Context, streamSID string, payload []byte) error
}

// Metrics receives pipeline instrumentation.
type Metrics interface {
	ObserveLatency(stage string, d time.Duration)
	LatencyBreach()
	SessionOpened()
	SessionClosed(status CallStatus)
	FrameDropped(reason string)
	StageError(stage string)
}

type NoOpMetrics struct{}

func (NoOpMetrics) ObserveLatency(string, time.Duration) {}
func (NoOpMetrics) LatencyBreach()                       {}
func (NoOpMetrics) SessionOpened()                       {}
func (NoOpMetrics) SessionClosed(CallStatus)             {}
func (NoOpMetrics) FrameDropped(string)                  {}
func (NoOpMetrics) StageError(string)                    {}

type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEvent is one recognizer result. Err carries a recoverable engine
// error; the utterance it belonged to is lost.
type TranscriptEvent struct {
	Text  string
	Final bool
	Err   error
}

type Intent string

const (
	IntentFAQ     Intent = "faq"
	IntentBooking Intent = "booking"
	IntentUrgent  Intent = "urgent"
	IntentOther   Intent = "other"
)

// ParseIntent maps free-form engine output onto a known intent, defaulting to IntentOther.
func ParseIntent(s string) Intent {
	switch i := Intent(strings.ToLower(strings.TrimSpace(s))); i {
	case IntentFAQ, IntentBooking, IntentUrgent:
		return i
	default:
		return IntentOther
	}
}

type ResponseDirective struct {
	Intent          Intent            `json:"intent"`
	Reply           string            `json:"reply"`
	Fields          map[string]string `json:"fields,omitempty"`
	BookingComplete bool              `json:"booking_complete"`
	NeedsEscalation bool              `json:"needs_escalation"`
}

// WantsBooking reports whether the directive completes a booking. The flag
// only counts on a booking turn.
func (d *ResponseDirective) WantsBooking() bool {
	return d.Intent == IntentBooking && d.BookingComplete
}

// WantsEscalation reports whether the directive raises an escalation. The
// flag only counts on an urgent turn.
func (d *ResponseDirective) WantsEscalation() bool {
	return d.Intent == IntentUrgent && d.NeedsEscalation
}

type AudioEncoding string

const (
	EncodingMulaw AudioEncoding = "mulaw"
	EncodingPCM   AudioEncoding = "pcm"
)

type AudioChunk struct {
	Data        []byte
	Encoding    AudioEncoding
	SampleRate  int
	SampleWidth int
}

type LatencyStage string

const (
	StageUtteranceReceived LatencyStage = "utterance_received"
	StageLLMReady          LatencyStage = "llm_ready"
	StageFirstAudio        LatencyStage = "first_audio"
	StageLastAudio         LatencyStage = "last_audio"
)

type LatencyMetric struct {
	Stage     LatencyStage `json:"stage"`
	Timestamp time.Time    `json:"timestamp"`
}

type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceF2 Voice = "F2"
	VoiceF3 Voice = "F3"
	VoiceF4 Voice = "F4"
	VoiceF5 Voice = "F5"
	VoiceM1 Voice = "M1"
	VoiceM2 Voice = "M2"
	VoiceM3 Voice = "M3"
	VoiceM4 Voice = "M4"
	VoiceM5 Voice = "M5"
)

type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageHi Language = "hi"
)

// Message is one chat-completion message exchanged with an LLMProvider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	SampleRate      int
	SampleWidth     int
	FrameDurationMs int
	// MaxBufferMs caps the per-session caller audio buffer.
	MaxBufferMs       int
	InboundQueueSize  int
	OutboundQueueSize int
	MaxSegmentChars   int
	Greeting          string
	Voice             Voice
	Language          Language
	LatencyTarget     time.Duration
	PipelineGrace     time.Duration
	EgressGrace       time.Duration
	LLMTimeout        time.Duration
	TTSTimeout        time.Duration
	ActionTimeout     time.Duration
}

const DefaultGreeting = "Hello! I'm Zylin, your AI receptionist. How can I help you today?"

func DefaultConfig() Config {
	return Config{
		SampleRate:        8000,
		SampleWidth:       2,
		FrameDurationMs:   20,
		MaxBufferMs:       10000,
		InboundQueueSize:  250, // 5s of 20ms frames
		OutboundQueueSize: 500,
		MaxSegmentChars:   200,
		Greeting:          DefaultGreeting,
		Voice:             VoiceF1,
		Language:          LanguageEn,
		LatencyTarget:     3000 * time.Millisecond,
		PipelineGrace:     5 * time.Second,
		EgressGrace:       2 * time.Second,
		LLMTimeout:        30 * time.Second,
		TTSTimeout:        30 * time.Second,
		ActionTimeout:     10 * time.Second,
	}
}

// withDefaults fills non-positive fields from DefaultConfig. Greeting is left
// as is so an empty greeting disables it.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.SampleWidth <= 0 {
		c.SampleWidth = d.SampleWidth
	}
	if c.FrameDurationMs <= 0 {
		c.FrameDurationMs = d.FrameDurationMs
	}
	if c.MaxBufferMs <= 0 {
		c.MaxBufferMs = d.MaxBufferMs
	}
	if c.InboundQueueSize <= 0 {
		c.InboundQueueSize = d.InboundQueueSize
	}
	if c.OutboundQueueSize <= 0 {
		c.OutboundQueueSize = d.OutboundQueueSize
	}
	if c.Voice == "" {
		c.Voice = d.Voice
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.MaxSegmentChars <= 0 {
		c.MaxSegmentChars = d.MaxSegmentChars
	}
	if c.LatencyTarget <= 0 {
		c.LatencyTarget = d.LatencyTarget
	}
	if c.PipelineGrace <= 0 {
		c.PipelineGrace = d.PipelineGrace
	}
	if c.EgressGrace <= 0 {
		c.EgressGrace = d.EgressGrace
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = d.LLMTimeout
	}
	if c.TTSTimeout <= 0 {
		c.TTSTimeout = d.TTSTimeout
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = d.ActionTimeout
	}
	return c
}
