package bridge

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/core/coretest"
)

func i420Sample(w, h int, tsNs int64) VideoSample {
	cw, ch := chromaSize(w, h)
	return VideoSample{
		Planes:      [][]byte{make([]byte, w*h), make([]byte, cw*ch), make([]byte, cw*ch)},
		Strides:     []int{w, cw, cw},
		Width:       w,
		Height:      h,
		Format:      PixelFormatI420,
		TimestampNs: tsNs,
	}
}

func TestSubmitVideoDroppedBeforeConnected(t *testing.T) {
	access := &coretest.Access{}
	b := New(access, zerolog.Nop())

	assert.False(t, b.SubmitVideo(i420Sample(4, 4, 0)))

	eng := coretest.NewEngine("")
	access.Set(eng, false)
	assert.False(t, b.SubmitVideo(i420Sample(4, 4, 0)))
	assert.Empty(t, eng.Video.Snapshot())
	assert.Equal(t, uint64(2), b.DroppedFrames())
}

func TestSubmitVideoStampsAndNumbersFrames(t *testing.T) {
	access := &coretest.Access{}
	eng := coretest.NewEngine("")
	eng.Clock.Store(2_000_000)
	access.Set(eng, true)
	b := New(access, zerolog.Nop())

	require.True(t, b.SubmitVideo(i420Sample(4, 4, 1_000_000_000)))
	eng.Clock.Store(2_033_000)
	require.True(t, b.SubmitVideo(i420Sample(4, 4, 1_033_000_000)))

	frames := eng.Video.Snapshot()
	require.Len(t, frames, 2)
	assert.Equal(t, int64(2_000_000), frames[0].TimestampUs)
	assert.GreaterOrEqual(t, frames[1].TimestampUs, frames[0].TimestampUs)
	assert.Greater(t, frames[1].ID, frames[0].ID)
	assert.Zero(t, b.DroppedFrames())
}

func TestSubmitVideoRejectsShortPlanes(t *testing.T) {
	access := &coretest.Access{}
	access.Set(coretest.NewEngine(""), true)
	b := New(access, zerolog.Nop())

	s := i420Sample(4, 4, 0)
	s.Planes[0] = s.Planes[0][:3]
	assert.False(t, b.SubmitVideo(s))
	assert.Equal(t, uint64(1), b.DroppedFrames())
}

func TestSubmitVideoSinkError(t *testing.T) {
	access := &coretest.Access{}
	eng := coretest.NewEngine("")
	eng.Video.Err = coretest.ErrInjected
	access.Set(eng, true)
	b := New(access, zerolog.Nop())
	assert.False(t, b.SubmitVideo(i420Sample(2, 2, 0)))
}

func TestSubmitAudio(t *testing.T) {
	access := &coretest.Access{}
	b := New(access, zerolog.Nop())
	s := core.AudioSample{Data: make([]byte, 1920), Frames: 480, Channels: 2, SampleRate: 48000}

	assert.False(t, b.SubmitAudio(s), "no engine yet")

	eng := coretest.NewEngine("")
	access.Set(eng, false)
	assert.True(t, b.SubmitAudio(s))
	assert.False(t, b.SubmitAudio(core.AudioSample{}))
	assert.Equal(t, 1, eng.Audio.Count())

	eng.Audio = nil
	assert.False(t, b.SubmitAudio(s))
}
