// Package stats pulls per-sender reports from the engine and folds them into snapshots.
package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Publisher/internal/core"
)

const defaultTimeout = 5 * time.Second

type Option func(*Aggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithTimeout bounds how long Collect waits for all senders.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// Aggregator publishes the latest Snapshot by pointer swap.
type Aggregator struct {
	access  core.EngineAccess
	log     zerolog.Logger
	now     func() time.Time
	timeout time.Duration

	latest atomic.Pointer[Snapshot]

	mu         sync.Mutex
	prevFrames uint32
	prevAt     time.Time
}

func New(access core.EngineAccess, log zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		access:  access,
		log:     log.With().Str("module", "stats").Logger(),
		now:     time.Now,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(a)
	}
	a.latest.Store(&Snapshot{})
	return a
}

// Latest returns the most recently published snapshot.
func (a *Aggregator) Latest() Snapshot { return *a.latest.Load() }

// Reset clears the published snapshot and the frame rate baseline.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.prevFrames, a.prevAt = 0, time.Time{}
	a.mu.Unlock()
	a.latest.Store(&Snapshot{})
}

// Collect requests one report per sender and waits for all of them.
// Without an engine it returns a zero snapshot and publishes nothing.
func (a *Aggregator) Collect(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		reports []core.SenderReport
		err     error
	)
	ran := a.access.WithEngine(func(e core.TransportEngine) {
		reports, err = a.gather(ctx, e)
	})
	if !ran {
		return Snapshot{}, nil
	}
	if err != nil {
		return a.Latest(), fmt.Errorf("collect stats: %w", err)
	}

	snap := reduce(reports)
	snap.CollectedAt = a.now()
	snap.FrameRate = a.frameRate(snap)
	a.latest.Store(&snap)
	return snap, nil
}

func (a *Aggregator) frameRate(snap Snapshot) float64 {
	prevFrames, prevAt := a.prevFrames, a.prevAt
	a.prevFrames, a.prevAt = snap.FramesSent, snap.CollectedAt
	if prevAt.IsZero() || snap.FramesSent < prevFrames {
		return 0
	}
	elapsed := snap.CollectedAt.Sub(prevAt).Seconds()
	if elapsed <= 0 {
		return a.latest.Load().FrameRate
	}
	return float64(snap.FramesSent-prevFrames) / elapsed
}

type reportFunc func(core.SenderReport)

func (f reportFunc) StatsDelivered(r core.SenderReport) { f(r) }

func (a *Aggregator) gather(ctx context.Context, e core.TransportEngine) ([]core.SenderReport, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	senders := e.Senders()
	reports := make([]core.SenderReport, len(senders))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range senders {
		g.Go(func() error {
			ch := make(chan core.SenderReport, 1)
			e.GetStats(s, reportFunc(func(r core.SenderReport) {
				select {
				case ch <- r:
				default:
				}
			}))
			select {
			case r := <-ch:
				if r.Err != nil {
					a.log.Warn().Err(r.Err).Str("sender", s.ID()).Msg("sender stats")
				}
				reports[i] = r
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// reduce sums per-kind counters, keeps the latest gauges and takes
// connection-scoped counters once.
func reduce(reports []core.SenderReport) Snapshot {
	var s Snapshot
	for _, r := range reports {
		if r.Err != nil {
			continue
		}
		s.TransportBytesSent = max(s.TransportBytesSent, r.TransportBytesSent)
		s.TransportBytesReceived = max(s.TransportBytesReceived, r.TransportBytesReceived)
		s.DataChannelMessagesSent = max(s.DataChannelMessagesSent, r.DataChannelMessagesSent)
		s.DataChannelBytesSent = max(s.DataChannelBytesSent, r.DataChannelBytesSent)
		s.DataChannelMessagesReceived = max(s.DataChannelMessagesReceived, r.DataChannelMessagesReceived)
		s.DataChannelBytesReceived = max(s.DataChannelBytesReceived, r.DataChannelBytesReceived)

		switch r.Kind {
		case core.KindAudio:
			s.AudioPacketsSent += r.PacketsSent
			s.AudioBytesSent += r.BytesSent
			s.AudioLevel = r.AudioLevel
			s.TotalAudioEnergy = r.TotalAudioEnergy
			s.TotalSamplesDuration = r.TotalSamplesDuration
		case core.KindVideo:
			s.VideoPacketsSent += r.PacketsSent
			s.VideoBytesSent += r.BytesSent
			s.PLICount += r.PLICount
			s.FIRCount += r.FIRCount
			s.NACKCount += r.NACKCount
			s.QPSum += r.QPSum
			s.FramesSent += r.FramesSent
			s.HugeFramesSent += r.HugeFramesSent
			if r.FrameWidth > 0 {
				s.FrameWidth, s.FrameHeight = r.FrameWidth, r.FrameHeight
			}
		}
	}
	s.TotalBytesSent = s.AudioBytesSent + s.VideoBytesSent
	return s
}

// Run collects every interval until ctx is done.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.Collect(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn().Err(err).Msg("stats poll")
			}
		}
	}
}
