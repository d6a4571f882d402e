// Package ivf plays a pre-encoded IVF file as a video encoder. Raw frames only pace the output.
package ivf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"github.com/dkeye/Publisher/internal/adapters/rtc"
	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/domain"
)

var ErrCodecMismatch = errors.New("ivf file codec does not match the negotiated codec")

var fourCC = map[string]domain.VideoCodec{
	"VP80": domain.VideoCodecVP8,
	"VP90": domain.VideoCodecVP9,
	"AV01": domain.VideoCodecAV1,
}

// Source loops over the frames of an IVF file.
type Source struct {
	mu     sync.Mutex
	file   io.ReadSeekCloser
	reader *ivfreader.IVFReader
	codec  domain.VideoCodec
}

func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newSource(f)
}

func newSource(f io.ReadSeekCloser) (*Source, error) {
	r, hdr, err := ivfreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ivf header: %w", err)
	}
	codec, ok := fourCC[hdr.FourCC]
	if !ok {
		_ = f.Close()
		return nil, fmt.Errorf("ivf fourcc %q: %w", hdr.FourCC, ErrCodecMismatch)
	}
	return &Source{file: f, reader: r, codec: codec}, nil
}

func (s *Source) Codec() domain.VideoCodec { return s.codec }

func (s *Source) Encode(core.VideoFrame) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame, _, err := s.reader.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		if err := s.rewind(); err != nil {
			return nil, err
		}
		frame, _, err = s.reader.ParseNextFrame()
	}
	if err != nil {
		return nil, err
	}
	return frame, nil
}

func (s *Source) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r, _, err := ivfreader.NewWith(s.file)
	if err != nil {
		return err
	}
	s.reader = r
	return nil
}

// RequestKeyframe is a no-op; the file decides where keyframes are.
func (s *Source) RequestKeyframe() {}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Factory opens the file for every encoder the engine asks for.
func Factory(path string) rtc.VideoEncoderFactory {
	return func(codec domain.VideoCodec, _, _, _ int) (rtc.VideoEncoder, error) {
		src, err := Open(path)
		if err != nil {
			return nil, err
		}
		if src.codec != codec {
			_ = src.Close()
			return nil, fmt.Errorf("%s file for %s track: %w", src.codec, codec, ErrCodecMismatch)
		}
		return src, nil
	}
}
