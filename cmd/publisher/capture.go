package main

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkeye/Publisher/internal/app/bridge"
	"github.com/dkeye/Publisher/internal/config"
	"github.com/dkeye/Publisher/internal/core"
)

const (
	sampleRate    = 48000
	audioChannels = 2
	audioChunk    = 10 * time.Millisecond
	boxSize       = 64
)

type frameSink interface {
	OnVideoFrame(bridge.VideoSample) bool
	OnAudioFrame(core.AudioSample) bool
}

// testSource produces a moving box over a gray background and a sine tone.
type testSource struct {
	cfg  config.CaptureConfig
	sink frameSink
	log  zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	y, u, v []byte
	phase   float64
	frame   uint64
}

func newTestSource(cfg config.CaptureConfig, sink frameSink, log zerolog.Logger) *testSource {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	cfg.Width &^= 1
	cfg.Height &^= 1
	cw, ch := cfg.Width/2, cfg.Height/2
	return &testSource{
		cfg:  cfg,
		sink: sink,
		log:  log.With().Str("module", "capture").Logger(),
		y:    make([]byte, cfg.Width*cfg.Height),
		u:    make([]byte, cw*ch),
		v:    make([]byte, cw*ch),
	}
}

func (s *testSource) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.log.Info().Int("width", s.cfg.Width).Int("height", s.cfg.Height).Int("fps", s.cfg.FPS).Msg("capture started")
}

// Stop waits for the generator to exit. Safe to call when not running.
func (s *testSource) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("capture stopped")
}

func (s *testSource) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	video := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	audio := time.NewTicker(audioChunk)
	defer video.Stop()
	defer audio.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-video.C:
			s.sink.OnVideoFrame(s.nextFrame(now))
		case now := <-audio.C:
			s.sink.OnAudioFrame(s.nextTone(now))
		}
	}
}

func (s *testSource) nextFrame(now time.Time) bridge.VideoSample {
	w, h := s.cfg.Width, s.cfg.Height
	for i := range s.y {
		s.y[i] = 128
	}
	for i := range s.u {
		s.u[i], s.v[i] = 128, 128
	}

	span := max(w-boxSize, 1)
	x0 := int(s.frame*4) % span
	y0 := (h - boxSize) / 2
	for row := max(y0, 0); row < min(y0+boxSize, h); row++ {
		for col := x0; col < min(x0+boxSize, w); col++ {
			s.y[row*w+col] = 235
		}
	}
	for row := max(y0, 0) / 2; row < min(y0+boxSize, h)/2; row++ {
		for col := x0 / 2; col < min(x0+boxSize, w)/2; col++ {
			s.u[row*(w/2)+col] = 90
			s.v[row*(w/2)+col] = 240
		}
	}
	s.frame++

	return bridge.VideoSample{
		Planes:      [][]byte{s.y, s.u, s.v},
		Strides:     []int{w, w / 2, w / 2},
		Width:       w,
		Height:      h,
		Format:      bridge.PixelFormatI420,
		TimestampNs: now.UnixNano(),
	}
}

func (s *testSource) nextTone(now time.Time) core.AudioSample {
	frames := int(sampleRate * audioChunk / time.Second)
	data := make([]byte, frames*audioChannels*2)
	step := 2 * math.Pi * s.cfg.ToneHz / sampleRate
	for i := 0; i < frames; i++ {
		v := int16(0.2 * math.MaxInt16 * math.Sin(s.phase))
		s.phase += step
		for c := 0; c < audioChannels; c++ {
			binary.LittleEndian.PutUint16(data[(i*audioChannels+c)*2:], uint16(v))
		}
	}
	s.phase = math.Mod(s.phase, 2*math.Pi)
	return core.AudioSample{
		Data:        data,
		Frames:      frames,
		Channels:    audioChannels,
		SampleRate:  sampleRate,
		TimestampUs: now.UnixMicro(),
	}
}
