package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
)

// SplitSegments cuts reply text into sentence-sized units. A segment ends at
// '.', '!', '?' or a newline, or once it reaches maxChars, in which case it is
// cut at the last space when there is one. Blank segments are dropped.
func SplitSegments(text string, maxChars int) []string {
	var segments []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			segments = append(segments, s)
		}
		cur.Reset()
	}

	for _, r := range text {
		cur.WriteRune(r)
		switch r {
		case '.', '!', '?', '\n':
			flush()
			continue
		}
		if maxChars > 0 && utf8.RuneCountInString(cur.String()) >= maxChars {
			s := cur.String()
			if i := strings.LastIndexByte(s, ' '); i > 0 {
				cur.Reset()
				if seg := strings.TrimSpace(s[:i]); seg != "" {
					segments = append(segments, seg)
				}
				cur.WriteString(s[i+1:])
				continue
			}
			flush()
		}
	}
	flush()
	return segments
}

// SynthesisResult summarises one reply.
type SynthesisResult struct {
	Segments int
	Skipped  int
	Frames   int
	// Err joins the failures of skipped segments.
	Err error
}

// Synthesizer turns reply text into transport-ready mu-law frames.
type Synthesizer struct {
	tts        TTSProvider
	voice      Voice
	lang       Language
	targetRate int
	frameSize  int
	maxChars   int
	timeout    time.Duration
	logger     Logger
}

func NewSynthesizer(tts TTSProvider, cfg Config, logger Logger) *Synthesizer {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Synthesizer{
		tts:        tts,
		voice:      cfg.Voice,
		lang:       cfg.Language,
		targetRate: cfg.SampleRate,
		frameSize:  cfg.SampleRate * cfg.FrameDurationMs / 1000,
		maxChars:   cfg.MaxSegmentChars,
		timeout:    cfg.TTSTimeout,
		logger:     logger,
	}
}

// Synthesize requests each segment in order and hands every frame to emit as
// soon as it is encoded. A failing segment is skipped and recorded in the
// result. The returned error is non-nil only when emit fails or ctx ends.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, emit func(AudioChunk) error) (SynthesisResult, error) {
	var res SynthesisResult
	var segErrs []error

	for _, seg := range SplitSegments(text, s.maxChars) {
		res.Segments++
		frames, emitErr, err := s.synthesizeSegment(ctx, seg, emit)
		res.Frames += frames
		if emitErr != nil {
			return res, emitErr
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Skipped++
		s.logger.Warn("segment synthesis failed, skipping", "stage", "tts", "provider", s.tts.Name(), "error", err)
		segErrs = append(segErrs, fmt.Errorf("%w: segment %d: %v", ErrSynthesisFailed, res.Segments, err))
	}

	res.Err = errors.Join(segErrs...)
	return res, nil
}

// synthesizeSegment reports emit failures separately from TTS failures so the
// caller can tell a closed call from a bad segment.
func (s *Synthesizer) synthesizeSegment(ctx context.Context, text string, emit func(AudioChunk) error) (frames int, emitErr error, err error) {
	segCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		segCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sourceRate := s.tts.SampleRate()
	if sourceRate <= 0 {
		return 0, nil, fmt.Errorf("%s reports sample rate %d", s.tts.Name(), sourceRate)
	}
	// Resample whole rate-ratio blocks so per-chunk rounding never drops samples.
	aligner := audio.NewSampleAligner(audio.PCMSampleWidth * sourceRate / gcd(sourceRate, s.targetRate))
	framer := audio.NewFramer(s.frameSize)

	send := func(payload []byte) error {
		chunk := AudioChunk{
			Data:        payload,
			Encoding:    EncodingMulaw,
			SampleRate:  s.targetRate,
			SampleWidth: 1,
		}
		if err := emit(chunk); err != nil {
			emitErr = err
			return err
		}
		frames++
		return nil
	}

	push := func(pcm []byte) error {
		if len(pcm) == 0 {
			return nil
		}
		resampled, err := audio.Resample(pcm, sourceRate, s.targetRate, audio.PCMSampleWidth)
		if err != nil {
			return err
		}
		mulaw, err := audio.EncodeMulaw(resampled)
		if err != nil {
			return err
		}
		for _, frame := range framer.Push(mulaw) {
			if err := send(frame); err != nil {
				return err
			}
		}
		return nil
	}

	err = s.tts.StreamSynthesize(segCtx, text, s.voice, s.lang, func(pcm []byte) error {
		return push(aligner.Align(pcm))
	})
	if emitErr != nil || err != nil {
		return frames, emitErr, err
	}

	rest := aligner.Flush()
	if err := push(rest[:len(rest)-len(rest)%audio.PCMSampleWidth]); err != nil {
		return frames, emitErr, err
	}
	if tail := framer.Flush(); len(tail) > 0 {
		send(tail)
	}
	return frames, emitErr, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
