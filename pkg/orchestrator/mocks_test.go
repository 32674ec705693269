package orchestrator

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"
)

// scriptedSTT emits its events once afterChunks chunks have been read, then
// drains audio until the channel closes.
type scriptedSTT struct {
	events      []TranscriptEvent
	afterChunks int
	startErr    error
	// endEarly closes the event stream right after the events are sent.
	endEarly bool
}

func (s *scriptedSTT) StreamTranscribe(ctx context.Context, audio <-chan []byte, lang Language) (<-chan TranscriptEvent, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	out := make(chan TranscriptEvent)
	go func() {
		defer close(out)
		n := 0
		emitted := false
		emit := func() bool {
			emitted = true
			for _, ev := range s.events {
				select {
				case out <- ev:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}
		if s.afterChunks == 0 && (!emit() || s.endEarly) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-audio:
				if !ok {
					return
				}
				n++
				if !emitted && n >= s.afterChunks && !emit() {
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *scriptedSTT) Name() string { return "ScriptedSTT" }

// funcEngine answers Infer with fn.
type funcEngine struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, call int, history []Turn) (*ResponseDirective, error)
}

func (e *funcEngine) Infer(ctx context.Context, history []Turn) (*ResponseDirective, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()
	return e.fn(ctx, call, history)
}

func (e *funcEngine) Name() string { return "FuncEngine" }

func (e *funcEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func replyEngine(reply string, intent Intent) *funcEngine {
	return &funcEngine{fn: func(ctx context.Context, call int, history []Turn) (*ResponseDirective, error) {
		return &ResponseDirective{Intent: intent, Reply: reply}, nil
	}}
}

// toneTTS streams a 440 Hz tone at 24 kHz, 10 ms per character, in odd-sized chunks.
type toneTTS struct {
	mu      sync.Mutex
	texts   []string
	failOn  string
	chunkSz int
}

func (t *toneTTS) StreamSynthesize(ctx context.Context, text string, voice Voice, lang Language, onChunk func([]byte) error) error {
	t.mu.Lock()
	t.texts = append(t.texts, text)
	t.mu.Unlock()
	if t.failOn != "" && text == t.failOn {
		return errors.New("tts backend unavailable")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	pcm := tone(24000, 10*len(text))
	size := t.chunkSz
	if size == 0 {
		size = 1001
	}
	for off := 0; off < len(pcm); off += size {
		end := off + size
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := onChunk(pcm[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (t *toneTTS) SampleRate() int { return 24000 }
func (t *toneTTS) Name() string    { return "ToneTTS" }

func (t *toneTTS) Texts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.texts...)
}

func tone(rate, ms int) []byte {
	n := rate * ms / 1000
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

type recordedFrame struct {
	streamSID string
	payload   []byte
}

type recordingWriter struct {
	mu     sync.Mutex
	frames []recordedFrame
	err    error
}

func (w *recordingWriter) WriteFrame(ctx context.Context, streamSID string, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, recordedFrame{streamSID: streamSID, payload: payload})
	return nil
}

func (w *recordingWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func (w *recordingWriter) Frames() []recordedFrame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]recordedFrame(nil), w.frames...)
}

type recordingActions struct {
	mu          sync.Mutex
	bookings    []BookingRequest
	escalations []EscalationRequest
	logs        []CallLog
}

func (a *recordingActions) DispatchBooking(ctx context.Context, req BookingRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bookings = append(a.bookings, req)
	return nil
}

func (a *recordingActions) DispatchEscalation(ctx context.Context, req EscalationRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.escalations = append(a.escalations, req)
	return nil
}

func (a *recordingActions) DispatchCallLog(ctx context.Context, log CallLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingActions) snapshot() (bookings, escalations int, logs []CallLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.bookings), len(a.escalations), append([]CallLog(nil), a.logs...)
}

type recordingMetrics struct {
	NoOpMetrics
	mu       sync.Mutex
	breaches int
	observed map[string]int
	dropped  int
}

func (m *recordingMetrics) ObserveLatency(stage string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.observed == nil {
		m.observed = map[string]int{}
	}
	m.observed[stage]++
}

func (m *recordingMetrics) LatencyBreach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaches++
}

func (m *recordingMetrics) FrameDropped(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

// testConfig keeps grace periods short and disables the greeting.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Greeting = ""
	cfg.PipelineGrace = 200 * time.Millisecond
	cfg.EgressGrace = 200 * time.Millisecond
	return cfg
}

// silentFrame returns one 20 ms frame of 8 kHz 16-bit silence.
func silentFrame() []byte {
	return make([]byte, 320)
}
