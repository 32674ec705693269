package audio

import (
	"encoding/binary"
	"fmt"
)

// Telephony media-stream audio format: 8-bit mu-law, 8 kHz, mono.
const (
	TransportSampleRate = 8000
	PCMSampleWidth      = 2
	FrameDurationMs     = 20
	// MulawFrameSize is one 20 ms frame of mu-law audio at 8 kHz.
	MulawFrameSize = TransportSampleRate * FrameDurationMs / 1000
)

// G.711 mu-law constants.
const (
	mulawBias = 0x84
	mulawClip = 32635
)

// FormatError reports audio whose byte length does not fit its declared sample width.
type FormatError struct {
	Op          string
	Length      int
	SampleWidth int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("audio %s: %d bytes is not a multiple of sample width %d", e.Op, e.Length, e.SampleWidth)
}

var mulawDecodeTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		mulawDecodeTable[i] = decodeMulawSample(byte(i))
	}
}

func decodeMulawSample(b byte) int16 {
	u := ^b
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F
	t := ((int(mantissa) << 3) + mulawBias) << exponent
	if sign != 0 {
		v := mulawBias - t
		if v == 0 {
			// 0x7F is mu-law negative zero. -1 encodes back to 0x7F, keeping the table invertible.
			return -1
		}
		return int16(v)
	}
	return int16(t - mulawBias)
}

func encodeMulawSample(s int16) byte {
	sample := int(s)
	var sign byte
	if sample < 0 {
		sample = -sample
		sign = 0x80
	}
	if sample > mulawClip {
		sample = mulawClip
	}
	sample += mulawBias

	exponent := byte(7)
	for mask := 0x4000; sample&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(sample>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}

// DecodeMulaw expands mu-law bytes into 16-bit little-endian linear PCM.
func DecodeMulaw(mulaw []byte) []byte {
	pcm := make([]byte, len(mulaw)*PCMSampleWidth)
	for i, b := range mulaw {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(mulawDecodeTable[b]))
	}
	return pcm
}

// EncodeMulaw compresses 16-bit little-endian linear PCM into mu-law bytes.
func EncodeMulaw(pcm []byte) ([]byte, error) {
	if len(pcm)%PCMSampleWidth != 0 {
		return nil, &FormatError{Op: "encode", Length: len(pcm), SampleWidth: PCMSampleWidth}
	}
	out := make([]byte, len(pcm)/PCMSampleWidth)
	for i := range out {
		out[i] = encodeMulawSample(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return out, nil
}
