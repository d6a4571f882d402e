package coretest

import (
	"sync"

	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/domain"
)

type OpenCall struct {
	SDP        string
	VideoCodec string
	AudioCodec string
	Label      string
	Audio      bool
}

type TrickleCall struct {
	Mid       string
	Index     int
	Candidate string
	IsEnd     bool
}

// Signaling is a scriptable core.SignalingClient.
// With AutoLogin it reports LoggedIn after Connect; with Answer it answers every Open.
type Signaling struct {
	RejectConnect bool
	RejectOpen    bool
	AutoLogin     bool
	Answer        func(offer string) string

	mu          sync.Mutex
	events      core.SignalingEvents
	url         string
	opens       []OpenCall
	trickles    []TrickleCall
	disconnects int
}

func (s *Signaling) Connect(url string, events core.SignalingEvents) bool {
	if s.RejectConnect {
		return false
	}
	s.mu.Lock()
	s.url, s.events = url, events
	s.mu.Unlock()
	if s.AutoLogin {
		go events.LoggedIn()
	}
	return true
}

func (s *Signaling) Open(sdp, videoCodec, audioCodec, label string, audio bool) bool {
	if s.RejectOpen {
		return false
	}
	s.mu.Lock()
	s.opens = append(s.opens, OpenCall{sdp, videoCodec, audioCodec, label, audio})
	events := s.events
	s.mu.Unlock()
	if s.Answer != nil {
		answer := s.Answer(sdp)
		go events.Opened(answer)
	}
	return true
}

func (s *Signaling) Trickle(mid string, index int, candidate string, isEnd bool) {
	s.mu.Lock()
	s.trickles = append(s.trickles, TrickleCall{mid, index, candidate, isEnd})
	s.mu.Unlock()
}

func (s *Signaling) Disconnect(bool) {
	s.mu.Lock()
	s.disconnects++
	s.mu.Unlock()
}

// Events returns what Connect was given, for injecting server events.
func (s *Signaling) Events() core.SignalingEvents {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

func (s *Signaling) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Signaling) Opens() []OpenCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OpenCall(nil), s.opens...)
}

func (s *Signaling) Trickles() []TrickleCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TrickleCall(nil), s.trickles...)
}

func (s *Signaling) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

// SignalingFactory hands out one prepared client per call.
type SignalingFactory struct {
	mu      sync.Mutex
	Err     error
	Next    func() *Signaling
	Created []*Signaling
	Modes   []domain.Mode
}

func (f *SignalingFactory) NewSignalingClient(_ domain.SessionConfig, mode domain.Mode) (core.SignalingClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	s := f.Next()
	f.Created = append(f.Created, s)
	f.Modes = append(f.Modes, mode)
	return s, nil
}

func (f *SignalingFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

func (f *SignalingFactory) Last() *Signaling {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Created) == 0 {
		return nil
	}
	return f.Created[len(f.Created)-1]
}
