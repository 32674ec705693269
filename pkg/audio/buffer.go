package audio

// Buffer accumulates 16-bit PCM at the transport sample rate, capped at a
// maximum duration. On overflow the oldest bytes are discarded first.
// It is not safe for concurrent use.
type Buffer struct {
	data          []byte
	maxDurationMs int
	maxBytes      int
	sampleRate    int
	sampleWidth   int
}

// NewBuffer creates a buffer holding at most maxDurationMs of 8 kHz 16-bit audio.
func NewBuffer(maxDurationMs int) *Buffer {
	return NewBufferWithFormat(maxDurationMs, TransportSampleRate, PCMSampleWidth)
}

// NewBufferWithFormat creates a buffer for a specific sample rate and width.
func NewBufferWithFormat(maxDurationMs, sampleRate, sampleWidth int) *Buffer {
	maxBytes := sampleRate * sampleWidth * maxDurationMs / 1000
	// Keep the cap sample-aligned so truncation never splits a sample.
	maxBytes -= maxBytes % sampleWidth
	return &Buffer{
		maxDurationMs: maxDurationMs,
		maxBytes:      maxBytes,
		sampleRate:    sampleRate,
		sampleWidth:   sampleWidth,
	}
}

// AddChunk appends audio, truncating from the front if the cap is exceeded.
func (b *Buffer) AddChunk(chunk []byte) {
	b.data = append(b.data, chunk...)
	if len(b.data) > b.maxBytes {
		drop := len(b.data) - b.maxBytes
		// Shift in place so the backing array does not grow without bound.
		n := copy(b.data, b.data[drop:])
		b.data = b.data[:n]
	}
}

// Audio returns a copy of the buffered bytes.
func (b *Buffer) Audio() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.data = b.data[:0]
}

// Len returns the buffered byte count.
func (b *Buffer) Len() int {
	return len(b.data)
}

// HasAudio reports whether anything is buffered.
func (b *Buffer) HasAudio() bool {
	return len(b.data) > 0
}

// DurationMs returns the buffered duration in milliseconds.
func (b *Buffer) DurationMs() float64 {
	samples := float64(len(b.data)) / float64(b.sampleWidth)
	return samples / float64(b.sampleRate) * 1000
}

// MaxDurationMs returns the configured cap.
func (b *Buffer) MaxDurationMs() int {
	return b.maxDurationMs
}
