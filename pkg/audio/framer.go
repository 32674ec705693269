package audio

// Framer cuts a byte stream into fixed-size frames, carrying any remainder
// over to the next Push.
type Framer struct {
	size    int
	pending []byte
}

// NewFramer returns a framer producing frames of size bytes.
func NewFramer(size int) *Framer {
	if size <= 0 {
		size = MulawFrameSize
	}
	return &Framer{size: size}
}

// Push appends data and returns every complete frame now available.
func (f *Framer) Push(data []byte) [][]byte {
	f.pending = append(f.pending, data...)
	var frames [][]byte
	for len(f.pending) >= f.size {
		frame := make([]byte, f.size)
		copy(frame, f.pending[:f.size])
		frames = append(frames, frame)
		f.pending = f.pending[f.size:]
	}
	if len(f.pending) == 0 {
		f.pending = nil
	}
	return frames
}

// Flush returns the trailing partial frame, if any, and resets the framer.
func (f *Framer) Flush() []byte {
	if len(f.pending) == 0 {
		return nil
	}
	out := f.pending
	f.pending = nil
	return out
}

// SampleAligner holds back a trailing partial sample so that arbitrarily
// split PCM chunks can be fed to sample-width-sensitive code.
type SampleAligner struct {
	width int
	carry []byte
}

// NewSampleAligner returns an aligner for the given sample width.
func NewSampleAligner(width int) *SampleAligner {
	return &SampleAligner{width: width}
}

// Align returns the largest sample-aligned prefix of carry+chunk and keeps the rest.
func (a *SampleAligner) Align(chunk []byte) []byte {
	buf := append(a.carry, chunk...)
	n := len(buf) - len(buf)%a.width
	a.carry = append([]byte(nil), buf[n:]...)
	return buf[:n]
}

// Pending reports how many bytes are held back.
func (a *SampleAligner) Pending() int {
	return len(a.carry)
}

// Flush returns the held-back bytes and resets the aligner.
func (a *SampleAligner) Flush() []byte {
	out := a.carry
	a.carry = nil
	return out
}
