package main

import (
	"encoding/binary"
	"math"
)

// micGate replaces quiet microphone input with silence. While the speaker is
// playing the threshold is raised so the gateway does not hear its own reply.
type micGate struct {
	threshold        float64
	playingThreshold float64
}

func newMicGate(threshold float64) *micGate {
	return &micGate{threshold: threshold, playingThreshold: threshold * 7.5}
}

// filter returns pcm unchanged when it is loud enough, or silence of the same length.
func (g *micGate) filter(pcm []byte, playing bool) []byte {
	limit := g.threshold
	if playing {
		limit = g.playingThreshold
	}
	if rms(pcm) > limit {
		return pcm
	}
	return make([]byte, len(pcm)-len(pcm)%2)
}

func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		f := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}
