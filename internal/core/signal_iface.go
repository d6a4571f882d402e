package core

import "github.com/dkeye/Publisher/internal/domain"

// LoginObserver receives the outcome of the login exchange.
type LoginObserver interface {
	LoggedIn()
	LoggedInError(reason string)
}

// OpenObserver receives the outcome of a publish request.
type OpenObserver interface {
	Opened(answerSDP string)
	OpenedError(reason string)
}

// RemoteCandidateObserver receives trickled candidates from the server.
// An empty candidate marks the end of remote gathering.
type RemoteCandidateObserver interface {
	RemoteCandidate(mid string, index int, candidate string)
}

type DisconnectObserver interface {
	Disconnected()
}

// ServerErrorObserver receives errors the server reports outside a login or publish reply.
type ServerErrorObserver interface {
	ServerError(reason string)
}

// SignalingEvents is everything a SignalingClient reports back.
// Events are delivered on the client's own goroutine.
type SignalingEvents interface {
	LoginObserver
	OpenObserver
	RemoteCandidateObserver
	DisconnectObserver
	ServerErrorObserver
}

// SignalingClient abstracts the raw signaling transport.
// Owned by the session controller; Disconnect must be called exactly once.
type SignalingClient interface {
	// Connect starts connecting and logging in. A false return is a synchronous rejection.
	Connect(url string, events SignalingEvents) bool
	// Open sends the publish request carrying the local offer.
	Open(sdp, videoCodec, audioCodec, label string, audio bool) bool
	Trickle(mid string, index int, candidate string, isEnd bool)
	// Disconnect closes the transport. With wait it blocks until the goodbye is flushed.
	Disconnect(wait bool)
}

type SignalingFactory interface {
	NewSignalingClient(cfg domain.SessionConfig, mode domain.Mode) (SignalingClient, error)
}
