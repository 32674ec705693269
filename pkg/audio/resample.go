package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Resample converts mono signed little-endian PCM from one sample rate to another
// using linear interpolation. Sample width (1, 2 or 4 bytes) is preserved.
// When the rates match the input is returned unchanged.
func Resample(pcm []byte, fromRate, toRate, sampleWidth int) ([]byte, error) {
	if sampleWidth != 1 && sampleWidth != 2 && sampleWidth != 4 {
		return nil, fmt.Errorf("audio resample: unsupported sample width %d", sampleWidth)
	}
	if len(pcm)%sampleWidth != 0 {
		return nil, &FormatError{Op: "resample", Length: len(pcm), SampleWidth: sampleWidth}
	}
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("audio resample: invalid rates %d -> %d", fromRate, toRate)
	}
	if fromRate == toRate {
		return pcm, nil
	}

	inSamples := len(pcm) / sampleWidth
	outSamples := int(int64(inSamples) * int64(toRate) / int64(fromRate))
	out := make([]byte, outSamples*sampleWidth)
	step := float64(fromRate) / float64(toRate)

	for i := 0; i < outSamples; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		a := readSample(pcm, idx, sampleWidth)
		b := a
		if idx+1 < inSamples {
			b = readSample(pcm, idx+1, sampleWidth)
		}
		v := float64(a) + (float64(b)-float64(a))*frac
		writeSample(out, i, sampleWidth, int64(math.Round(v)))
	}
	return out, nil
}

func readSample(pcm []byte, i, width int) int64 {
	off := i * width
	switch width {
	case 1:
		return int64(int8(pcm[off]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(pcm[off:])))
	default:
		return int64(int32(binary.LittleEndian.Uint32(pcm[off:])))
	}
}

func writeSample(pcm []byte, i, width int, v int64) {
	off := i * width
	switch width {
	case 1:
		pcm[off] = byte(int8(clamp(v, math.MinInt8, math.MaxInt8)))
	case 2:
		binary.LittleEndian.PutUint16(pcm[off:], uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
	default:
		binary.LittleEndian.PutUint32(pcm[off:], uint32(int32(clamp(v, math.MinInt32, math.MaxInt32))))
	}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
