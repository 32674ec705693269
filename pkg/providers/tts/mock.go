package tts

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// MockTTS renders a quiet 440 Hz tone whose length follows the text, for
// local runs without a synthesis account.
type MockTTS struct {
	sampleRate int
	msPerChar  int
	chunkMs    int
	pace       time.Duration
}

// NewMockTTS returns a 24 kHz tone generator. pace delays each chunk to
// imitate a streaming engine; zero disables the delay.
func NewMockTTS(pace time.Duration) *MockTTS {
	return &MockTTS{
		sampleRate: 24000,
		msPerChar:  60,
		chunkMs:    100,
		pace:       pace,
	}
}

func (m *MockTTS) StreamSynthesize(ctx context.Context, text string, voice orchestrator.Voice, lang orchestrator.Language, onChunk func([]byte) error) error {
	total := len(text) * m.msPerChar * m.sampleRate / 1000
	perChunk := m.chunkMs * m.sampleRate / 1000

	for start := 0; start < total; start += perChunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + perChunk
		if end > total {
			end = total
		}
		chunk := make([]byte, (end-start)*2)
		for i := start; i < end; i++ {
			v := int16(4000 * math.Sin(2*math.Pi*440*float64(i)/float64(m.sampleRate)))
			binary.LittleEndian.PutUint16(chunk[(i-start)*2:], uint16(v))
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
		if m.pace > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.pace):
			}
		}
	}
	return nil
}

func (m *MockTTS) SampleRate() int {
	return m.sampleRate
}

func (m *MockTTS) Name() string {
	return "mock-tts"
}
