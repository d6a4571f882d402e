package main

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Publisher/internal/app/bridge"
	"github.com/dkeye/Publisher/internal/config"
	"github.com/dkeye/Publisher/internal/core"
)

type countingSink struct {
	video, audio atomic.Int32
}

func (c *countingSink) OnVideoFrame(bridge.VideoSample) bool { c.video.Add(1); return true }
func (c *countingSink) OnAudioFrame(core.AudioSample) bool   { c.audio.Add(1); return true }

func TestTestSource_Frame(t *testing.T) {
	s := newTestSource(config.CaptureConfig{Width: 321, Height: 240, FPS: 30, ToneHz: 440}, &countingSink{}, zerolog.Nop())
	f := s.nextFrame(time.Unix(1, 0))
	assert.Equal(t, 320, f.Width)
	assert.Equal(t, 240, f.Height)
	assert.Equal(t, bridge.PixelFormatI420, f.Format)
	require.Len(t, f.Planes, 3)
	assert.Len(t, f.Planes[0], 320*240)
	assert.Len(t, f.Planes[1], 160*120)
	assert.Equal(t, int64(1e9), f.TimestampNs)

	row := (240 - boxSize) / 2
	assert.Equal(t, byte(235), f.Planes[0][row*320])
	assert.Equal(t, byte(128), f.Planes[0][0])
}

func TestTestSource_Tone(t *testing.T) {
	s := newTestSource(config.CaptureConfig{ToneHz: 1000}, &countingSink{}, zerolog.Nop())
	a := s.nextTone(time.Unix(2, 0))
	assert.Equal(t, 480, a.Frames)
	assert.Equal(t, 2, a.Channels)
	assert.Equal(t, 48000, a.SampleRate)
	require.Len(t, a.Data, 480*2*2)

	var peak int16
	for i := 0; i < a.Frames; i++ {
		left := int16(binary.LittleEndian.Uint16(a.Data[i*4:]))
		right := int16(binary.LittleEndian.Uint16(a.Data[i*4+2:]))
		assert.Equal(t, left, right)
		peak = max(peak, left)
	}
	assert.Greater(t, peak, int16(5000))
}

func TestTestSource_StartStop(t *testing.T) {
	sink := &countingSink{}
	s := newTestSource(config.CaptureConfig{Width: 64, Height: 64, FPS: 100, ToneHz: 440}, sink, zerolog.Nop())
	s.Stop()

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return sink.video.Load() > 2 && sink.audio.Load() > 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	v := sink.video.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, v, sink.video.Load())
}
