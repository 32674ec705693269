// Command softphone calls a running gateway from the local microphone. It
// speaks the media-stream protocol exactly like the telephony provider does,
// so the whole pipeline can be exercised without a phone line.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	xlog "github.com/lokutor-ai/lokutor-callstream/internal/log"
	"github.com/lokutor-ai/lokutor-callstream/pkg/audio"
	"github.com/lokutor-ai/lokutor-callstream/pkg/telephony"
)

func main() {
	_ = godotenv.Load()

	url := flag.String("url", envOr("SOFTPHONE_URL", "ws://localhost:8080/media"), "gateway media-stream URL")
	caller := flag.String("caller", envOr("SOFTPHONE_CALLER", "+15550100"), "caller id sent in the start event")
	threshold := flag.Float64("threshold", 0.02, "microphone RMS gate")
	flag.Parse()

	xlog.Configure(xlog.Config{Service: "softphone"})
	logger := xlog.WithComponent("softphone")

	if err := run(*url, *caller, *threshold); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("softphone failed")
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(url, caller string, threshold float64) error {
	logger := xlog.WithComponent("softphone")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.CloseNow()

	callSID := "SP" + uuid.NewString()
	streamSID := "MZ" + uuid.NewString()
	start := telephony.Message{
		Event:     telephony.EventStart,
		StreamSID: streamSID,
		Start: &telephony.StartPayload{
			StreamSID:        streamSID,
			CallSID:          callSID,
			CustomParameters: map[string]string{"callerPhone": caller},
			MediaFormat:      &telephony.MediaFormat{Encoding: "audio/x-mulaw", SampleRate: audio.TransportSampleRate, Channels: 1},
		},
	}
	if err := wsjson.Write(ctx, conn, telephony.Message{Event: telephony.EventConnected}); err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, start); err != nil {
		return err
	}
	logger.Info().Str("call_sid", callSID).Str("url", url).Msg("call started, speak into the microphone (Ctrl+C to hang up)")

	player := &playback{}
	gate := newMicGate(threshold)
	frames := make(chan []byte, 100)
	framer := audio.NewFramer(audio.MulawFrameSize)

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			pcm := gate.filter(pInput, player.recentlyPlayed(200*time.Millisecond))
			mulaw, err := audio.EncodeMulaw(pcm)
			if err == nil {
				for _, f := range framer.Push(mulaw) {
					select {
					case frames <- f:
					default:
					}
				}
			}
		}
		if pOutput != nil {
			player.fill(pOutput)
		}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = audio.TransportSampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		return fmt.Errorf("start device: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				// Hang up with a stop event so the gateway completes the call.
				stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = wsjson.Write(stopCtx, conn, telephony.Message{Event: telephony.EventStop, StreamSID: streamSID})
				return gctx.Err()
			case f := <-frames:
				msg := telephony.Message{
					Event:     telephony.EventMedia,
					StreamSID: streamSID,
					Media:     &telephony.MediaPayload{Payload: base64.StdEncoding.EncodeToString(f)},
				}
				if err := wsjson.Write(gctx, conn, msg); err != nil {
					return fmt.Errorf("send audio: %w", err)
				}
			}
		}
	})
	g.Go(func() error {
		for {
			var out telephony.OutboundMedia
			if err := wsjson.Read(gctx, conn, &out); err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					logger.Info().Msg("gateway ended the call")
					return context.Canceled
				}
				return err
			}
			mulaw, err := base64.StdEncoding.DecodeString(out.Media.Payload)
			if err != nil {
				logger.Warn().Err(err).Msg("bad media payload")
				continue
			}
			player.enqueue(audio.DecodeMulaw(mulaw))
		}
	})

	err = g.Wait()
	conn.Close(websocket.StatusNormalClosure, "")
	return err
}

// playback is the speaker queue shared with the device callback.
type playback struct {
	mu         sync.Mutex
	pending    []byte
	lastPlayed time.Time
}

func (p *playback) enqueue(pcm []byte) {
	p.mu.Lock()
	p.pending = append(p.pending, pcm...)
	p.mu.Unlock()
}

func (p *playback) fill(out []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(out, p.pending)
	p.pending = p.pending[n:]
	if n > 0 {
		p.lastPlayed = time.Now()
	}
	clear(out[n:])
}

func (p *playback) recentlyPlayed(window time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastPlayed) < window
}
