package main

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/dkeye/Publisher/internal/app/session"
	"github.com/dkeye/Publisher/internal/app/stats"
	"github.com/dkeye/Publisher/internal/config"
	"github.com/dkeye/Publisher/internal/domain"
)

type capturer interface {
	Start(ctx context.Context)
	Stop()
}

// host wires the session controller to the capture source, the control API and the restart policy.
type host struct {
	ctx     context.Context
	store   *config.Store
	log     zerolog.Logger
	ctrl    *session.Controller
	capture capturer

	mu          sync.Mutex
	lastError   string
	userStopped bool
	bo          backoff.BackOff
	timer       *time.Timer
}

func newHost(ctx context.Context, store *config.Store, log zerolog.Logger) *host {
	return &host{
		ctx:   ctx,
		store: store,
		log:   log.With().Str("module", "host").Logger(),
	}
}

func (h *host) attach(ctrl *session.Controller, capture capturer) {
	h.ctrl = ctrl
	h.capture = capture
}

func newBackOff(ctx context.Context, rc config.RestartConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if rc.InitialInterval > 0 {
		b.InitialInterval = rc.InitialInterval
	}
	if rc.MaxInterval > 0 {
		b.MaxInterval = rc.MaxInterval
	}
	b.MaxElapsedTime = rc.MaxElapsed
	b.Reset()
	return backoff.WithContext(b, ctx)
}

func (h *host) SetLastError(msg string) {
	h.mu.Lock()
	h.lastError = msg
	h.mu.Unlock()
	h.log.Warn().Str("error", msg).Msg("session error")
}

// SignalStop schedules a restart when enabled and the session ended on its own.
func (h *host) SignalStop(code domain.StopCode) {
	h.log.Info().Str("code", code.String()).Msg("session stopped")
	rc := h.store.Current().Restart
	if code == domain.StopSuccess || !rc.Enabled {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.userStopped || !h.ctrl.State().Terminal() {
		return
	}
	if h.bo == nil {
		h.bo = newBackOff(h.ctx, rc)
	}
	d := h.bo.NextBackOff()
	if d == backoff.Stop {
		h.log.Warn().Msg("giving up restarting")
		h.bo = nil
		return
	}
	h.log.Info().Dur("in", d).Msg("restart scheduled")
	h.stopTimerLocked()
	h.timer = time.AfterFunc(d, h.restart)
}

func (h *host) restart() {
	h.mu.Lock()
	if h.userStopped || h.ctx.Err() != nil {
		h.mu.Unlock()
		return
	}
	h.timer = nil
	h.mu.Unlock()
	h.ctrl.Start(h.store.Current().PublishMode())
}

func (h *host) BeginCapture() {
	h.mu.Lock()
	h.bo = nil
	h.mu.Unlock()
	h.capture.Start(h.ctx)
}

func (h *host) EndCapture() { h.capture.Stop() }

func (h *host) stopTimerLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *host) Start() bool {
	h.mu.Lock()
	h.userStopped = false
	h.lastError = ""
	h.bo = nil
	h.stopTimerLocked()
	h.mu.Unlock()
	return h.ctrl.Start(h.store.Current().PublishMode())
}

func (h *host) Stop() bool {
	h.mu.Lock()
	h.userStopped = true
	h.stopTimerLocked()
	h.mu.Unlock()
	return h.ctrl.Stop()
}

func (h *host) LastError() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastError
}

func (h *host) State() domain.SessionState { return h.ctrl.State() }
func (h *host) DroppedFrames() uint64      { return h.ctrl.DroppedFrames() }
func (h *host) Stats() stats.Snapshot      { return h.ctrl.Stats() }
func (h *host) StatsList() string          { return h.ctrl.StatsList() }
func (h *host) GetStats(ctx context.Context) (stats.Snapshot, error) {
	return h.ctrl.GetStats(ctx)
}
