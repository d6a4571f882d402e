// Package session drives one outbound publish from login to teardown.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dkeye/Publisher/internal/app/bridge"
	"github.com/dkeye/Publisher/internal/app/sdpedit"
	"github.com/dkeye/Publisher/internal/app/stats"
	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/domain"
	"github.com/dkeye/Publisher/internal/serial"
)

// ConfigProvider returns the configuration for the next attempt.
type ConfigProvider interface {
	SessionConfig() (domain.SessionConfig, error)
}

type ConfigFunc func() (domain.SessionConfig, error)

func (f ConfigFunc) SessionConfig() (domain.SessionConfig, error) { return f() }

const defaultStatsInterval = time.Second

type Option func(*Controller)

func WithStatsInterval(d time.Duration) Option {
	return func(c *Controller) { c.statsInterval = d }
}

func WithStatsOptions(opts ...stats.Option) Option {
	return func(c *Controller) { c.statsOpts = append(c.statsOpts, opts...) }
}

// Controller owns the session state machine. Engine and signaling callbacks
// carry the attempt they were created for; callbacks from older attempts are ignored.
type Controller struct {
	configs       ConfigProvider
	engines       core.EngineFactory
	signals       core.SignalingFactory
	host          core.Host
	log           zerolog.Logger
	statsInterval time.Duration
	statsOpts     []stats.Option

	mu          sync.Mutex
	state       domain.SessionState
	attempt     uint64
	trace       string
	closed      bool
	capturing   bool
	cfg         domain.SessionConfig
	editor      sdpedit.Editor
	engine      core.TransportEngine
	signaling   core.SignalingClient
	offer       string
	lastErr     *Error
	statsCancel context.CancelFunc

	slotMu sync.RWMutex
	slot   core.TransportEngine
	live   atomic.Bool

	tasks  *serial.Queue
	bridge *bridge.Bridge
	stats  *stats.Aggregator
}

func New(configs ConfigProvider, engines core.EngineFactory, signals core.SignalingFactory, host core.Host, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		configs:       configs,
		engines:       engines,
		signals:       signals,
		host:          host,
		log:           log.With().Str("module", "session").Logger(),
		statsInterval: defaultStatsInterval,
		state:         domain.StateIdle,
		closed:        true,
		tasks:         serial.New(),
	}
	for _, o := range opts {
		o(c)
	}
	c.bridge = bridge.New(c, log)
	c.stats = stats.New(c, log, c.statsOpts...)
	return c
}

// Start begins a new attempt. It returns false when the attempt failed synchronously;
// the host has then been notified through SetLastError and SignalStop.
func (c *Controller) Start(mode domain.Mode) bool {
	cfg, cfgErr := c.configs.SessionConfig()
	if cfgErr == nil {
		cfgErr = cfg.Validate()
	}

	c.mu.Lock()
	if !c.closed {
		prev := c.attempt
		c.log.Warn().Uint64("attempt", prev).Msg("start while active, closing previous attempt")
		c.failLocked(prev, &Error{Kind: ConnectivityError, Message: msgPeer, Stop: domain.StopError, Cause: ErrReplacedByStart})
	}
	c.attempt++
	id := c.attempt
	c.trace = uuid.NewString()
	trace := c.trace
	c.closed = false
	c.capturing = false
	c.lastErr = nil
	c.offer = ""
	c.state = domain.StateConnecting
	log := c.attemptLog(id)

	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("invalid configuration")
		c.failLocked(id, configurationError(cfgErr))
		c.mu.Unlock()
		return false
	}

	if cfg.Simulcast && !sdpedit.SimulcastAllowed(cfg.VideoCodec) {
		log.Info().Str("codec", cfg.VideoCodec.String()).Msg("simulcast not supported for codec, disabling")
		cfg.Simulcast = false
	}
	cfg.VideoCodec = sdpedit.ResolveVideoCodec(cfg.VideoCodec)
	cfg.AudioCodec, cfg.AudioCodecSet = cfg.EffectiveAudioCodec(), true
	c.cfg = cfg
	c.editor = sdpedit.NewEditor(cfg, c.log)
	c.mu.Unlock()

	c.bridge.Reset()
	c.stats.Reset()
	log.Info().
		Str("url", cfg.SignalingURL()).
		Str("video_codec", cfg.VideoCodec.String()).
		Str("audio_codec", cfg.AudioCodec.String()).
		Bool("simulcast", cfg.Simulcast).
		Str("protocol", cfg.Protocol.String()).
		Str("mode", mode.String()).
		Str("trace", trace).
		Msg("starting")

	eng, err := c.engines.NewEngine(cfg, core.EngineObservers{
		Candidates: engineEvents{c, id},
		ICE:        engineEvents{c, id},
		Connection: engineEvents{c, id},
	})

	c.mu.Lock()
	if !c.currentLocked(id) {
		c.mu.Unlock()
		if eng != nil {
			_ = eng.Close()
		}
		return false
	}
	if err != nil {
		log.Error().Err(err).Msg("create transport engine")
		c.failLocked(id, transportCreateError(err))
		c.mu.Unlock()
		return false
	}
	c.engine = eng
	c.slotMu.Lock()
	c.slot = eng
	c.slotMu.Unlock()
	c.mu.Unlock()

	sig, err := c.signals.NewSignalingClient(cfg, mode)

	c.mu.Lock()
	if !c.currentLocked(id) {
		c.mu.Unlock()
		if sig != nil {
			sig.Disconnect(false)
		}
		return false
	}
	if err != nil {
		log.Error().Err(err).Msg("create signaling client")
		c.failLocked(id, signalingCreateError(err))
		c.mu.Unlock()
		return false
	}
	c.signaling = sig
	c.state = domain.StateAwaitingLogin
	c.mu.Unlock()

	if !sig.Connect(cfg.SignalingURL(), signalingEvents{c, id}) {
		log.Warn().Msg("signaling connect rejected")
		c.fail(id, connectError())
		return false
	}
	return true
}

// Stop closes the current attempt, waiting for teardown. It returns false if nothing was open.
func (c *Controller) Stop() bool {
	return c.close(true)
}

// Shutdown stops the controller for good.
func (c *Controller) Shutdown() {
	c.close(true)
	c.tasks.Close()
	<-c.tasks.Done()
}

func (c *Controller) close(wait bool) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	id := c.attempt
	c.state = domain.StateClosing
	td := c.detachLocked()
	c.attemptLog(id).Info().Msg("closing")
	done := c.tasks.PushDone(func() {
		td.release(wait)
		c.mu.Lock()
		if c.attempt == id && c.state == domain.StateClosing {
			c.state = domain.StateClosed
		}
		c.mu.Unlock()
	})
	c.mu.Unlock()
	if wait {
		<-done
	}
	return true
}

// closeRemote ends attempt id after the server went away. It passes through Closing to
// Closed like Stop, but the host still gets the cause and one stop signal.
func (c *Controller) closeRemote(id uint64, e *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(id) {
		return
	}
	c.attemptLog(id).Warn().Err(e.Cause).Str("stop", e.Stop.String()).Msg("remote closed")
	c.state = domain.StateClosing
	c.lastErr = e
	td := c.detachLocked()
	c.tasks.Push(func() {
		td.release(false)
		c.mu.Lock()
		if c.attempt == id && c.state == domain.StateClosing {
			c.state = domain.StateClosed
		}
		c.mu.Unlock()
		c.host.SetLastError(e.Message)
		c.host.SignalStop(e.Stop)
	})
}

// fail moves attempt id to Failed and schedules teardown and host notification.
func (c *Controller) fail(id uint64, e *Error) {
	c.mu.Lock()
	c.failLocked(id, e)
	c.mu.Unlock()
}

func (c *Controller) failLocked(id uint64, e *Error) {
	if id != c.attempt || c.closed {
		return
	}
	c.attemptLog(id).Error().Err(e.Cause).Str("kind", e.Kind.String()).Str("stop", e.Stop.String()).Msg("session failed")
	c.state = domain.StateFailed
	c.lastErr = e
	td := c.detachLocked()
	c.tasks.Push(func() {
		td.release(false)
		if !errors.Is(e.Cause, ErrReplacedByStart) {
			c.host.SetLastError(e.Message)
		}
		c.host.SignalStop(e.Stop)
	})
}

type teardown struct {
	c         *Controller
	engine    core.TransportEngine
	signaling core.SignalingClient
	capturing bool
}

// detachLocked takes the attempt's resources out of the controller. Frames stop flowing
// immediately; the engine slot is cleared when the teardown runs.
func (c *Controller) detachLocked() teardown {
	td := teardown{c: c, engine: c.engine, signaling: c.signaling, capturing: c.capturing}
	c.closed = true
	c.capturing = false
	c.engine, c.signaling = nil, nil
	c.live.Store(false)
	if c.statsCancel != nil {
		c.statsCancel()
		c.statsCancel = nil
	}
	return td
}

func (td teardown) release(wait bool) {
	c := td.c
	if td.signaling != nil {
		td.signaling.Disconnect(wait)
	}
	if td.engine != nil {
		c.slotMu.Lock()
		if c.slot == td.engine {
			c.slot = nil
		}
		c.slotMu.Unlock()
		if err := td.engine.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close transport engine")
		}
	}
	if td.capturing {
		c.host.EndCapture()
	}
}

func (c *Controller) currentLocked(id uint64) bool {
	return id == c.attempt && !c.closed
}

func (c *Controller) attemptLog(id uint64) *zerolog.Logger {
	l := c.log.With().Uint64("attempt", id).Logger()
	return &l
}

// WithEngine runs fn with the current engine under the slot read lock.
func (c *Controller) WithEngine(fn func(core.TransportEngine)) bool {
	c.slotMu.RLock()
	defer c.slotMu.RUnlock()
	if c.slot == nil {
		return false
	}
	fn(c.slot)
	return true
}

// WithLiveEngine is WithEngine restricted to a connected session.
func (c *Controller) WithLiveEngine(fn func(core.TransportEngine)) bool {
	c.slotMu.RLock()
	defer c.slotMu.RUnlock()
	if c.slot == nil || !c.live.Load() {
		return false
	}
	fn(c.slot)
	return true
}

func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError is the user-facing message of the last failure, if any.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil {
		return ""
	}
	return c.lastErr.Message
}

// Err returns the last failure with its cause.
func (c *Controller) Err() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) OnVideoFrame(s bridge.VideoSample) bool { return c.bridge.SubmitVideo(s) }

func (c *Controller) OnAudioFrame(s core.AudioSample) bool { return c.bridge.SubmitAudio(s) }

func (c *Controller) DroppedFrames() uint64 { return c.bridge.DroppedFrames() }

// GetStats collects now and returns the fresh snapshot.
func (c *Controller) GetStats(ctx context.Context) (stats.Snapshot, error) {
	return c.stats.Collect(ctx)
}

// Stats returns the last published snapshot without collecting.
func (c *Controller) Stats() stats.Snapshot { return c.stats.Latest() }

func (c *Controller) StatsList() string { return c.stats.Latest().Lines() }

func (c *Controller) TransportBytesSent() uint64     { return c.stats.Latest().TransportBytesSent }
func (c *Controller) TransportBytesReceived() uint64 { return c.stats.Latest().TransportBytesReceived }
func (c *Controller) VideoPacketsSent() uint64       { return c.stats.Latest().VideoPacketsSent }
func (c *Controller) VideoBytesSent() uint64         { return c.stats.Latest().VideoBytesSent }
func (c *Controller) AudioPacketsSent() uint64       { return c.stats.Latest().AudioPacketsSent }
func (c *Controller) AudioBytesSent() uint64         { return c.stats.Latest().AudioBytesSent }
func (c *Controller) TotalBytesSent() uint64         { return c.stats.Latest().TotalBytesSent }
func (c *Controller) PLICount() uint32               { return c.stats.Latest().PLICount }
func (c *Controller) FIRCount() uint32               { return c.stats.Latest().FIRCount }
func (c *Controller) NACKCount() uint32              { return c.stats.Latest().NACKCount }
func (c *Controller) QPSum() uint64                  { return c.stats.Latest().QPSum }
func (c *Controller) FrameRate() float64             { return c.stats.Latest().FrameRate }

func (c *Controller) startStatsLocked() {
	if c.statsInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.statsCancel = cancel
	go c.stats.Run(ctx, c.statsInterval)
}

// Trace identifies the current attempt in logs and in the control API.
func (c *Controller) Trace() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trace
}
