package orchestrator

import (
	"math"
	"time"
)

// RMSVAD is a simple Root Mean Square based Voice Activity Detector.
// Silence is measured in audio time, derived from chunk length and sample
// rate, so results do not depend on how fast chunks arrive.
type RMSVAD struct {
	threshold    float64
	silenceLimit time.Duration
	sampleRate   int
	isSpeaking   bool
	silence      time.Duration

	// Hysteresis and confirmed speech detection
	consecutiveFrames int
	minConfirmed      int
	lastRMS           float64
}

// NewRMSVAD creates a new RMS-based VAD for 16-bit PCM at 8 kHz
func NewRMSVAD(threshold float64, silenceLimit time.Duration) *RMSVAD {
	return &RMSVAD{
		threshold:    threshold,
		silenceLimit: silenceLimit,
		sampleRate:   8000,
		minConfirmed: 3, // ~60ms of 20ms frames
	}
}

// SetSampleRate sets the rate used to turn chunk length into duration
func (v *RMSVAD) SetSampleRate(rate int) {
	if rate > 0 {
		v.sampleRate = rate
	}
}

// SetMinConfirmed sets the number of consecutive frames needed to confirm speech start
func (v *RMSVAD) SetMinConfirmed(count int) {
	v.minConfirmed = count
}

// SetThreshold updates the RMS threshold
func (v *RMSVAD) SetThreshold(threshold float64) {
	v.threshold = threshold
}

func (v *RMSVAD) Threshold() float64 {
	return v.threshold
}

// LastRMS returns the RMS of the last processed chunk
func (v *RMSVAD) LastRMS() float64 {
	return v.lastRMS
}

func (v *RMSVAD) IsSpeaking() bool {
	return v.isSpeaking
}

func (v *RMSVAD) Process(chunk []byte) (*VADEvent, error) {
	rms := calculateRMS(chunk)
	v.lastRMS = rms
	now := time.Now().UnixMilli()

	if rms > v.threshold {
		v.consecutiveFrames++
		v.silence = 0
		if !v.isSpeaking {
			// Require a sequence of frames above threshold to filter out line noise spikes
			if v.consecutiveFrames >= v.minConfirmed {
				v.isSpeaking = true
				return &VADEvent{Type: VADSpeechStart, Timestamp: now}, nil
			}
		}
		return nil, nil
	}

	v.consecutiveFrames = 0

	if v.isSpeaking {
		v.silence += v.chunkDuration(chunk)
		if v.silence >= v.silenceLimit {
			v.isSpeaking = false
			v.silence = 0
			return &VADEvent{Type: VADSpeechEnd, Timestamp: now}, nil
		}
		return nil, nil
	}

	return &VADEvent{Type: VADSilence, Timestamp: now}, nil
}

func (v *RMSVAD) Name() string {
	return "rms_vad"
}

func (v *RMSVAD) Reset() {
	v.isSpeaking = false
	v.silence = 0
	v.consecutiveFrames = 0
}

func (v *RMSVAD) Clone() VADProvider {
	return &RMSVAD{
		threshold:    v.threshold,
		silenceLimit: v.silenceLimit,
		sampleRate:   v.sampleRate,
		minConfirmed: v.minConfirmed,
	}
}

func (v *RMSVAD) chunkDuration(chunk []byte) time.Duration {
	samples := len(chunk) / 2
	return time.Duration(samples) * time.Second / time.Duration(v.sampleRate)
}

func calculateRMS(chunk []byte) float64 {
	if len(chunk) < 2 {
		return 0
	}

	var sum float64
	// 16-bit little-endian PCM
	for i := 0; i < len(chunk)-1; i += 2 {
		sample := int16(chunk[i]) | (int16(chunk[i+1]) << 8)
		f := float64(sample) / 32768.0
		sum += f * f
	}

	return math.Sqrt(sum / float64(len(chunk)/2))
}
