// Package bridge moves captured frames into the live transport engine.
package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dkeye/Publisher/internal/core"
)

// Bridge converts, timestamps and forwards capture to the engine.
// Video is dropped until the session is connected.
type Bridge struct {
	access  core.EngineAccess
	aligner *TimestampAligner
	log     zerolog.Logger

	mu   sync.Mutex
	conv converter

	nextID  atomic.Uint64
	dropped atomic.Uint64
}

func New(access core.EngineAccess, log zerolog.Logger) *Bridge {
	return &Bridge{
		access:  access,
		aligner: NewTimestampAligner(),
		log:     log.With().Str("module", "bridge").Logger(),
	}
}

// SubmitVideo reports whether the frame reached the engine.
func (b *Bridge) SubmitVideo(s VideoSample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	accepted := false
	b.access.WithLiveEngine(func(e core.TransportEngine) {
		sink := e.VideoSink()
		if sink == nil {
			return
		}
		frame, err := b.conv.toI420(s)
		if err != nil {
			b.log.Debug().Err(err).Str("format", s.Format.String()).Msg("frame rejected")
			return
		}
		frame.TimestampUs = b.aligner.Translate(s.TimestampNs/1000, e.NowMicros())
		frame.ID = b.nextID.Add(1)
		if err := sink.WriteVideo(frame); err != nil {
			b.log.Debug().Err(err).Uint64("frame_id", frame.ID).Msg("video write")
			return
		}
		accepted = true
	})
	if !accepted {
		b.dropped.Add(1)
	}
	return accepted
}

// SubmitAudio forwards PCM unmodified once the engine has an audio sink.
func (b *Bridge) SubmitAudio(s core.AudioSample) bool {
	if len(s.Data) == 0 || s.Frames <= 0 {
		return false
	}
	accepted := false
	b.access.WithEngine(func(e core.TransportEngine) {
		sink := e.AudioSink()
		if sink == nil {
			return
		}
		if err := sink.WriteAudio(s); err != nil {
			b.log.Debug().Err(err).Msg("audio write")
			return
		}
		accepted = true
	})
	return accepted
}

// DroppedFrames counts video frames that did not reach the engine.
func (b *Bridge) DroppedFrames() uint64 { return b.dropped.Load() }

// Reset prepares the bridge for a new attempt. Frame ids keep increasing.
func (b *Bridge) Reset() {
	b.aligner.Reset()
	b.dropped.Store(0)
}
