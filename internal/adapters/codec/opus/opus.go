// Package opus adapts libopus to the engine's audio encoder contract.
package opus

import (
	"errors"
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/dkeye/Publisher/internal/adapters/rtc"
	"github.com/dkeye/Publisher/internal/domain"
)

const (
	frameMs       = 20
	maxPacketSize = 4000
)

var ErrMultistream = errors.New("multistream opus is not supported by this encoder")

type Encoder struct {
	enc       *opus.Encoder
	frameSize int
	buf       []byte
}

// NewEncoder creates a 20 ms Opus encoder. bitrateKbps <= 0 keeps the library default.
func NewEncoder(codec domain.AudioCodec, sampleRate, channels, bitrateKbps int) (rtc.AudioEncoder, error) {
	if codec == domain.AudioCodecMultiOpus || channels > 2 {
		return nil, ErrMultistream
	}
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	if bitrateKbps > 0 {
		if err := enc.SetBitrate(bitrateKbps * 1000); err != nil {
			return nil, fmt.Errorf("opus bitrate: %w", err)
		}
	}
	return &Encoder{
		enc:       enc,
		frameSize: sampleRate * frameMs / 1000,
		buf:       make([]byte, maxPacketSize),
	}, nil
}

func (e *Encoder) FrameSize() int { return e.frameSize }

func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}

func (e *Encoder) Close() error { return nil }
