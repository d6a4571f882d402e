package core

import "github.com/dkeye/Publisher/internal/domain"

type SDPType int

const (
	SDPTypeOffer SDPType = iota
	SDPTypeAnswer
)

func (t SDPType) String() string {
	if t == SDPTypeAnswer {
		return "answer"
	}
	return "offer"
}

// Description is a textual session description.
type Description struct {
	Type SDPType
	SDP  string
}

// Candidate is a trickled ICE candidate. Empty Candidate means end of candidates.
type Candidate struct {
	Mid        string
	MLineIndex int
	Candidate  string
}

type ICEState int

const (
	ICEStateNew ICEState = iota
	ICEStateChecking
	ICEStateConnected
	ICEStateCompleted
	ICEStateDisconnected
	ICEStateFailed
	ICEStateClosed
)

func (s ICEState) String() string {
	switch s {
	case ICEStateChecking:
		return "checking"
	case ICEStateConnected:
		return "connected"
	case ICEStateCompleted:
		return "completed"
	case ICEStateDisconnected:
		return "disconnected"
	case ICEStateFailed:
		return "failed"
	case ICEStateClosed:
		return "closed"
	default:
		return "new"
	}
}

type ConnectionState int

const (
	ConnectionStateNew ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateConnected
	ConnectionStateDisconnected
	ConnectionStateFailed
	ConnectionStateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateFailed:
		return "failed"
	case ConnectionStateClosed:
		return "closed"
	default:
		return "new"
	}
}

type MediaKind int

const (
	KindAudio MediaKind = iota
	KindVideo
)

func (k MediaKind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "audio"
}

// Sender is one outbound media sender owned by the engine.
type Sender interface {
	ID() string
	Kind() MediaKind
}

// Narrow engine observers. Each is invoked on an engine goroutine.
type (
	OfferObserver interface {
		OfferCreated(Description)
		OfferFailed(error)
	}
	DescriptionObserver interface {
		DescriptionSet()
		DescriptionFailed(error)
	}
	StatsObserver interface {
		StatsDelivered(SenderReport)
	}
	CandidateObserver interface {
		LocalCandidate(Candidate)
	}
	ICEStateObserver interface {
		ICEStateChanged(ICEState)
	}
	ConnectionObserver interface {
		ConnectionStateChanged(ConnectionState)
	}
)

// EngineObservers is bound once, at engine creation.
type EngineObservers struct {
	Candidates CandidateObserver
	ICE        ICEStateObserver
	Connection ConnectionObserver
}

// SenderReport is one sender's statistics at a point in time.
// Transport and data channel counters are connection scoped and repeat in every report.
type SenderReport struct {
	SenderID string
	Kind     MediaKind
	Err      error

	PacketsSent uint64
	BytesSent   uint64

	TransportBytesSent     uint64
	TransportBytesReceived uint64

	PLICount  uint32
	FIRCount  uint32
	NACKCount uint32
	QPSum     uint64

	FrameWidth     uint32
	FrameHeight    uint32
	FramesSent     uint32
	HugeFramesSent uint32

	AudioLevel           float64
	TotalAudioEnergy     float64
	TotalSamplesDuration float64

	DataChannelMessagesSent     uint32
	DataChannelBytesSent        uint64
	DataChannelMessagesReceived uint32
	DataChannelBytesReceived    uint64
}

type VideoSink interface {
	WriteVideo(VideoFrame) error
}

type AudioSink interface {
	WriteAudio(AudioSample) error
}

// TransportEngine abstracts the real-time transport. Completion is reported through observers.
type TransportEngine interface {
	CreateOffer(OfferObserver)
	SetLocalDescription(Description, DescriptionObserver)
	SetRemoteDescription(Description, DescriptionObserver)
	// AddICECandidate may be called before the remote description is set.
	AddICECandidate(Candidate) error
	Senders() []Sender
	GetStats(Sender, StatsObserver)
	VideoSink() VideoSink
	AudioSink() AudioSink
	// NowMicros is the engine's monotonic clock.
	NowMicros() int64
	Close() error
}

type EngineFactory interface {
	NewEngine(cfg domain.SessionConfig, obs EngineObservers) (TransportEngine, error)
}

// EngineAccess hands out the current engine under a read lock.
// Both return false when the callback was not run.
type EngineAccess interface {
	WithEngine(fn func(TransportEngine)) bool
	WithLiveEngine(fn func(TransportEngine)) bool
}
