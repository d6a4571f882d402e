package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Publisher/internal/app/session"
	"github.com/dkeye/Publisher/internal/config"
	"github.com/dkeye/Publisher/internal/core/coretest"
	"github.com/dkeye/Publisher/internal/domain"
)

type fakeCapture struct {
	mu      sync.Mutex
	starts  int
	stops   int
	running bool
}

func (f *fakeCapture) Start(context.Context) {
	f.mu.Lock()
	f.starts++
	f.running = true
	f.mu.Unlock()
}

func (f *fakeCapture) Stop() {
	f.mu.Lock()
	f.stops++
	f.running = false
	f.mu.Unlock()
}

func loadStore(t *testing.T, body string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	store, err := config.LoadFile(path)
	require.NoError(t, err)
	return store
}

const baseConfig = `
publisher:
  service_url: wss://svc.example/ws
  stream_name: cam
  mode: custom
`

func newTestHost(t *testing.T, yaml string) (*host, *coretest.SignalingFactory, *fakeCapture) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := loadStore(t, yaml)
	engines := &coretest.EngineFactory{Next: func() *coretest.Engine { return coretest.NewEngine("v=0\r\n") }}
	signals := &coretest.SignalingFactory{Next: func() *coretest.Signaling {
		return &coretest.Signaling{RejectConnect: true}
	}}
	h := newHost(ctx, store, zerolog.Nop())
	capture := &fakeCapture{}
	ctrl := session.New(store, engines, signals, h, zerolog.Nop(), session.WithStatsInterval(0))
	t.Cleanup(ctrl.Shutdown)
	h.attach(ctrl, capture)
	return h, signals, capture
}

func TestHost_RestartsWithBackoff(t *testing.T) {
	h, signals, _ := newTestHost(t, baseConfig+`
restart:
  enabled: true
  initial_interval: 10ms
  max_interval: 20ms
  max_elapsed: 5s
`)
	assert.False(t, h.Start())
	require.Eventually(t, func() bool { return signals.Count() >= 3 }, 3*time.Second, 5*time.Millisecond)

	h.Stop()
	time.Sleep(50 * time.Millisecond)
	n := signals.Count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, signals.Count(), "no restarts after a user stop")
	assert.Equal(t, domain.ModeCustom, signals.Modes[0])
}

func TestHost_NoRestartWhenDisabled(t *testing.T) {
	h, signals, _ := newTestHost(t, baseConfig)
	assert.False(t, h.Start())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, signals.Count())
	assert.Equal(t, domain.StateFailed, h.State())
}

func TestHost_StartReplacesLastError(t *testing.T) {
	h, _, _ := newTestHost(t, baseConfig)
	h.SetLastError("boom")
	assert.Equal(t, "boom", h.LastError())

	assert.False(t, h.Start())
	require.Eventually(t, func() bool {
		msg := h.LastError()
		return msg != "" && msg != "boom"
	}, time.Second, 5*time.Millisecond)
}

func TestHost_CaptureFollowsSession(t *testing.T) {
	h, _, capture := newTestHost(t, baseConfig)
	h.BeginCapture()
	capture.mu.Lock()
	assert.True(t, capture.running)
	capture.mu.Unlock()

	h.EndCapture()
	capture.mu.Lock()
	defer capture.mu.Unlock()
	assert.False(t, capture.running)
	assert.Equal(t, 1, capture.starts)
	assert.Equal(t, 1, capture.stops)
}
