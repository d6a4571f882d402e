package session

import (
	"errors"
	"fmt"

	"github.com/dkeye/Publisher/internal/domain"
)

// Kind classifies why a session ended.
type Kind int

const (
	ConfigurationError Kind = iota + 1
	TransportCreateError
	SignalingError
	NegotiationError
	ConnectivityError
)

func (k Kind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration"
	case TransportCreateError:
		return "transport_create"
	case SignalingError:
		return "signaling"
	case NegotiationError:
		return "negotiation"
	case ConnectivityError:
		return "connectivity"
	default:
		return "unknown"
	}
}

var (
	ErrConnectRejected = errors.New("signaling connect rejected")
	ErrLoginFailed     = errors.New("login failed")
	ErrOpenRejected    = errors.New("publish request rejected")
	ErrOpenFailed      = errors.New("publish failed")
	ErrICEFailed       = errors.New("ice connection failed")
	ErrPeerFailed      = errors.New("peer connection failed")
	ErrDisconnected    = errors.New("signaling disconnected")
	ErrServer          = errors.New("server reported an error")
	ErrReplacedByStart = errors.New("session replaced by a new start")
)

// Error is a terminal session failure. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Message string
	Stop    domain.StopCode
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String() + ": " + e.Message
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

const (
	msgConfiguration   = "Your service settings are not complete. Open the stream settings and complete them."
	msgTransportCreate = "There was an error connecting to the server. Are you connected to the internet?"
	msgSignalingCreate = "There was a problem creating the websocket connection. Are you behind a firewall?"
	msgConnect         = "There was a problem connecting to your room."
	msgLogin           = "We are having trouble connecting to your room. Are you behind a firewall?"
	msgOpen            = "The server refused to publish the stream."
	msgNegotiation     = "An unexpected error occurred during stream startup."
	msgICE             = "We found your room, but streaming failed. Are you behind a firewall?"
	msgPeer            = "Connection failure."
	msgDisconnected    = "The connection to the server was lost."
	msgServer          = "The server reported an error."
)

func configurationError(cause error) *Error {
	return &Error{Kind: ConfigurationError, Message: msgConfiguration, Stop: domain.StopConnectFailed, Cause: cause}
}

func transportCreateError(cause error) *Error {
	return &Error{Kind: TransportCreateError, Message: msgTransportCreate, Stop: domain.StopConnectFailed, Cause: cause}
}

func signalingCreateError(cause error) *Error {
	return &Error{Kind: SignalingError, Message: msgSignalingCreate, Stop: domain.StopConnectFailed, Cause: cause}
}

func connectError() *Error {
	return &Error{Kind: SignalingError, Message: msgConnect, Stop: domain.StopConnectFailed, Cause: ErrConnectRejected}
}

func loginError(reason string) *Error {
	return &Error{Kind: SignalingError, Message: msgLogin, Stop: domain.StopError, Cause: fmt.Errorf("%w: %s", ErrLoginFailed, reason)}
}

func openError(cause error) *Error {
	return &Error{Kind: SignalingError, Message: msgOpen, Stop: domain.StopError, Cause: cause}
}

func negotiationError(step string, cause error) *Error {
	return &Error{Kind: NegotiationError, Message: msgNegotiation, Stop: domain.StopError, Cause: fmt.Errorf("%s: %w", step, cause)}
}

func iceError() *Error {
	return &Error{Kind: ConnectivityError, Message: msgICE, Stop: domain.StopError, Cause: ErrICEFailed}
}

func peerError() *Error {
	return &Error{Kind: ConnectivityError, Message: msgPeer, Stop: domain.StopError, Cause: ErrPeerFailed}
}

func disconnectedError() *Error {
	return &Error{Kind: ConnectivityError, Message: msgDisconnected, Stop: domain.StopDisconnected, Cause: ErrDisconnected}
}

func serverError(reason string) *Error {
	return &Error{Kind: SignalingError, Message: msgServer, Stop: domain.StopError, Cause: wrapReason(ErrServer, reason)}
}

func wrapReason(err error, reason string) error {
	if reason == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, reason)
}
