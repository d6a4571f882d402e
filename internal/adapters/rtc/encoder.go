package rtc

import (
	"errors"

	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/domain"
)

var ErrNoEncoder = errors.New("no encoder for track")

// VideoEncoder turns I420 frames into one encoded access unit each.
// An empty result means the encoder buffered the frame.
type VideoEncoder interface {
	Encode(core.VideoFrame) ([]byte, error)
	RequestKeyframe()
	Close() error
}

// QPReporter is implemented by video encoders that expose the last frame's quantizer.
type QPReporter interface {
	LastQP() int
}

// AudioEncoder encodes interleaved PCM frames of exactly FrameSize samples per channel.
type AudioEncoder interface {
	Encode(pcm []int16) ([]byte, error)
	FrameSize() int
	Close() error
}

type VideoEncoderFactory func(codec domain.VideoCodec, width, height, bitrateKbps int) (VideoEncoder, error)

type AudioEncoderFactory func(codec domain.AudioCodec, sampleRate, channels, bitrateKbps int) (AudioEncoder, error)
