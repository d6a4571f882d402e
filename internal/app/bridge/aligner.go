package bridge

import "sync"

const (
	alignerWindow        = 100
	alignerResetJumpUs   = 300_000
	alignerMinIntervalUs = 1_000
)

// TimestampAligner maps capture timestamps onto the engine clock.
// The offset between the two clocks is set on the first frame and smoothed
// over a sliding window afterwards. Output never exceeds the engine clock and
// never goes backwards.
type TimestampAligner struct {
	mu         sync.Mutex
	offsetUs   int64
	framesSeen int64
	clipBiasUs int64
	prevUs     int64
	started    bool
}

func NewTimestampAligner() *TimestampAligner { return &TimestampAligner{} }

// Translate returns the engine-clock timestamp for a frame captured at captureUs,
// where systemUs is the engine clock at delivery.
func (a *TimestampAligner) Translate(captureUs, systemUs int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	diff := systemUs - captureUs - a.offsetUs
	if !a.started || diff > alignerResetJumpUs || diff < -alignerResetJumpUs {
		a.offsetUs = systemUs - captureUs
		a.framesSeen = 0
		a.clipBiasUs = 0
		diff = 0
	}
	if a.framesSeen < alignerWindow {
		a.framesSeen++
	}
	a.offsetUs += diff / a.framesSeen

	ts := captureUs + a.offsetUs - a.clipBiasUs
	if ts > systemUs {
		a.clipBiasUs += ts - systemUs
		ts = systemUs
	} else if a.started && ts < a.prevUs+alignerMinIntervalUs {
		ts = min(a.prevUs+alignerMinIntervalUs, systemUs)
	}
	if a.started && ts < a.prevUs {
		ts = a.prevUs
	}
	a.prevUs = ts
	a.started = true
	return ts
}

func (a *TimestampAligner) Reset() {
	a.mu.Lock()
	a.offsetUs, a.framesSeen, a.clipBiasUs, a.prevUs = 0, 0, 0, 0
	a.started = false
	a.mu.Unlock()
}
