// Package domain contains plain data shared by the publisher components.
package domain

import (
	"errors"
	"strings"
)

var (
	ErrNoSignalingURL = errors.New("signaling url empty")
	ErrNoStreamName   = errors.New("stream name empty")
)

// Mode is carried to the signaling server at login.
type Mode int

const (
	ModeStandard Mode = iota
	ModeCustom
)

func (m Mode) String() string {
	if m == ModeCustom {
		return "custom"
	}
	return "standard"
}

// ParseMode treats anything but "custom" as standard.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "custom") {
		return ModeCustom
	}
	return ModeStandard
}

// Credentials identify the publisher to the signaling service.
type Credentials struct {
	UserID   string `json:"user"`
	Password string `json:"-"`
}

// SessionConfig is immutable for the lifetime of one publish attempt.
type SessionConfig struct {
	ServiceURL    string
	PublishAPIURL string
	StreamName    string
	Credentials   Credentials

	VideoCodec       VideoCodec
	AudioCodec       AudioCodec
	AudioCodecSet    bool
	AudioChannels    int
	VideoBitrateKbps int
	VideoMinKbps     int
	AudioBitrateKbps int

	Simulcast  bool
	Stereo     bool
	Protocol   Protocol
	ICEServers []string
}

// SignalingURL returns the publish API URL, falling back to the service URL.
func (c SessionConfig) SignalingURL() string {
	if u := strings.TrimSpace(c.PublishAPIURL); u != "" {
		return u
	}
	return strings.TrimSpace(c.ServiceURL)
}

// EffectiveAudioCodec returns the configured audio codec or the one implied by the channel count.
func (c SessionConfig) EffectiveAudioCodec() AudioCodec {
	if c.AudioCodecSet {
		return c.AudioCodec
	}
	return AudioCodecForChannels(c.AudioChannels)
}

func (c SessionConfig) Validate() error {
	if c.SignalingURL() == "" {
		return ErrNoSignalingURL
	}
	return nil
}

// SessionState is the controller's negotiation state.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateConnecting
	StateAwaitingLogin
	StateNegotiating
	StateAwaitingAnswer
	StateConnected
	StateClosing
	StateClosed
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingLogin:
		return "awaiting_login"
	case StateNegotiating:
		return "negotiating"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions happen without a new Start.
func (s SessionState) Terminal() bool {
	return s == StateClosed || s == StateFailed || s == StateIdle
}

// StopCode is the category reported to the host when a session ends.
type StopCode int

const (
	StopSuccess StopCode = iota
	StopConnectFailed
	StopError
	StopDisconnected
)

func (c StopCode) String() string {
	switch c {
	case StopConnectFailed:
		return "connect_failed"
	case StopError:
		return "error"
	case StopDisconnected:
		return "disconnected"
	default:
		return "success"
	}
}
