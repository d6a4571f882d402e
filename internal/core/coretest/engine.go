// Package coretest provides in-memory doubles for the core interfaces.
package coretest

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/domain"
)

var ErrInjected = errors.New("injected failure")

// Sender is a static core.Sender.
type Sender struct {
	SenderID   string
	SenderKind core.MediaKind
}

func (s Sender) ID() string           { return s.SenderID }
func (s Sender) Kind() core.MediaKind { return s.SenderKind }

// Engine is a scriptable core.TransportEngine. Observers fire on new goroutines.
type Engine struct {
	Obs core.EngineObservers

	OfferSDP  string
	OfferErr  error
	LocalErr  error
	RemoteErr error

	SenderList []core.Sender
	Reports    map[string]core.SenderReport
	// StatsDelay holds each report back before delivery.
	StatsDelay time.Duration

	Video *VideoRecorder
	Audio *AudioRecorder

	Clock atomic.Int64

	mu         sync.Mutex
	local      []core.Description
	remote     []core.Description
	candidates []core.Candidate
	closed     atomic.Int32

	statsInFlight  atomic.Int32
	inFlightAtStop atomic.Int32
}

func NewEngine(offer string) *Engine {
	return &Engine{
		OfferSDP: offer,
		SenderList: []core.Sender{
			Sender{SenderID: "audio", SenderKind: core.KindAudio},
			Sender{SenderID: "video", SenderKind: core.KindVideo},
		},
		Reports: map[string]core.SenderReport{},
		Video:   &VideoRecorder{},
		Audio:   &AudioRecorder{},
	}
}

func (e *Engine) CreateOffer(obs core.OfferObserver) {
	if e.OfferErr != nil {
		go obs.OfferFailed(e.OfferErr)
		return
	}
	go obs.OfferCreated(core.Description{Type: core.SDPTypeOffer, SDP: e.OfferSDP})
}

func (e *Engine) SetLocalDescription(d core.Description, obs core.DescriptionObserver) {
	e.mu.Lock()
	e.local = append(e.local, d)
	e.mu.Unlock()
	if e.LocalErr != nil {
		go obs.DescriptionFailed(e.LocalErr)
		return
	}
	go obs.DescriptionSet()
}

func (e *Engine) SetRemoteDescription(d core.Description, obs core.DescriptionObserver) {
	e.mu.Lock()
	e.remote = append(e.remote, d)
	e.mu.Unlock()
	if e.RemoteErr != nil {
		go obs.DescriptionFailed(e.RemoteErr)
		return
	}
	go obs.DescriptionSet()
}

func (e *Engine) AddICECandidate(c core.Candidate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candidates = append(e.candidates, c)
	return nil
}

func (e *Engine) Senders() []core.Sender { return e.SenderList }

func (e *Engine) GetStats(s core.Sender, obs core.StatsObserver) {
	e.mu.Lock()
	r, ok := e.Reports[s.ID()]
	e.mu.Unlock()
	if !ok {
		r = core.SenderReport{Kind: s.Kind()}
	}
	r.SenderID = s.ID()
	e.statsInFlight.Add(1)
	go func() {
		if e.StatsDelay > 0 {
			time.Sleep(e.StatsDelay)
		}
		e.statsInFlight.Add(-1)
		obs.StatsDelivered(r)
	}()
}

// SetReport replaces the report returned for a sender.
func (e *Engine) SetReport(id string, r core.SenderReport) {
	e.mu.Lock()
	e.Reports[id] = r
	e.mu.Unlock()
}

func (e *Engine) VideoSink() core.VideoSink {
	if e.Video == nil {
		return nil
	}
	return e.Video
}

func (e *Engine) AudioSink() core.AudioSink {
	if e.Audio == nil {
		return nil
	}
	return e.Audio
}

func (e *Engine) NowMicros() int64 { return e.Clock.Load() }

func (e *Engine) Close() error {
	e.inFlightAtStop.Add(e.statsInFlight.Load())
	e.closed.Add(1)
	return nil
}

func (e *Engine) CloseCount() int { return int(e.closed.Load()) }

// StatsInFlightAtClose is how many requested reports were still undelivered when Close ran.
func (e *Engine) StatsInFlightAtClose() int { return int(e.inFlightAtStop.Load()) }

func (e *Engine) LocalDescriptions() []core.Description {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Description(nil), e.local...)
}

func (e *Engine) RemoteDescriptions() []core.Description {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Description(nil), e.remote...)
}

func (e *Engine) Candidates() []core.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Candidate(nil), e.candidates...)
}

// VideoRecorder keeps copies of the frame metadata it receives.
type VideoRecorder struct {
	mu     sync.Mutex
	Frames []core.VideoFrame
	Err    error
}

func (r *VideoRecorder) WriteVideo(f core.VideoFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	f.Y = append([]byte(nil), f.Y...)
	f.U = append([]byte(nil), f.U...)
	f.V = append([]byte(nil), f.V...)
	r.Frames = append(r.Frames, f)
	return nil
}

func (r *VideoRecorder) Snapshot() []core.VideoFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.VideoFrame(nil), r.Frames...)
}

type AudioRecorder struct {
	mu      sync.Mutex
	Samples []core.AudioSample
}

func (r *AudioRecorder) WriteAudio(s core.AudioSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Samples = append(r.Samples, s)
	return nil
}

func (r *AudioRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Samples)
}

// EngineFactory hands out one prepared engine per call.
type EngineFactory struct {
	mu      sync.Mutex
	Err     error
	Next    func() *Engine
	Created []*Engine
	Configs []domain.SessionConfig
}

func (f *EngineFactory) NewEngine(cfg domain.SessionConfig, obs core.EngineObservers) (core.TransportEngine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Configs = append(f.Configs, cfg)
	if f.Err != nil {
		return nil, f.Err
	}
	e := f.Next()
	e.Obs = obs
	f.Created = append(f.Created, e)
	return e, nil
}

func (f *EngineFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

func (f *EngineFactory) Last() *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Created) == 0 {
		return nil
	}
	return f.Created[len(f.Created)-1]
}

// Access is a fixed core.EngineAccess.
type Access struct {
	mu     sync.RWMutex
	engine core.TransportEngine
	live   bool
}

func (a *Access) Set(e core.TransportEngine, live bool) {
	a.mu.Lock()
	a.engine, a.live = e, live
	a.mu.Unlock()
}

func (a *Access) WithEngine(fn func(core.TransportEngine)) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.engine == nil {
		return false
	}
	fn(a.engine)
	return true
}

func (a *Access) WithLiveEngine(fn func(core.TransportEngine)) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.engine == nil || !a.live {
		return false
	}
	fn(a.engine)
	return true
}
