// Package rtc implements the transport engine on pion/webrtc.
package rtc

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/domain"
	"github.com/dkeye/Publisher/internal/serial"
)

const (
	DefaultSTUN = "stun:stun.l.google.com:19302"

	streamID    = "publisher"
	multiOpusPT = 63
)

var simulcastLayers = []struct {
	rid   string
	scale int
}{{"q", 4}, {"h", 2}, {"f", 1}}

// multiOpusLayouts are the Vorbis channel mappings for 3 to 8 channels.
var multiOpusLayouts = map[int]string{
	3: "channel_mapping=0,2,1;num_streams=2;coupled_streams=1",
	4: "channel_mapping=0,1,2,3;num_streams=2;coupled_streams=2",
	5: "channel_mapping=0,4,1,2,3;num_streams=3;coupled_streams=2",
	6: "channel_mapping=0,4,1,2,3,5;num_streams=4;coupled_streams=2",
	7: "channel_mapping=0,4,1,2,3,5,6;num_streams=4;coupled_streams=3",
	8: "channel_mapping=0,6,1,2,3,4,5,7;num_streams=5;coupled_streams=3",
}

type sender struct {
	id   string
	kind core.MediaKind
	rtp  *webrtc.RTPSender
}

func (s *sender) ID() string           { return s.id }
func (s *sender) Kind() core.MediaKind { return s.kind }

// Factory builds one Engine per publish attempt.
type Factory struct {
	Log               zerolog.Logger
	VideoEncoders     VideoEncoderFactory
	AudioEncoders     AudioEncoderFactory
	DefaultICEServers []string

	settings func(*webrtc.SettingEngine)
}

func (f *Factory) NewEngine(cfg domain.SessionConfig, obs core.EngineObservers) (core.TransportEngine, error) {
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = f.DefaultICEServers
	}
	e, err := NewEngine(cfg, obs, f.VideoEncoders, f.AudioEncoders, f.settings, f.Log)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Engine is a send-only peer connection with one audio and one video sender.
// Operations run on an internal queue and report through the observers.
type Engine struct {
	cfg           domain.SessionConfig
	log           zerolog.Logger
	obs           core.EngineObservers
	pc            *webrtc.PeerConnection
	counters      *feedbackCounters
	videoEncoders VideoEncoderFactory
	audioEncoders AudioEncoderFactory
	video         *videoSink
	audio         *audioSink
	senders       []*sender
	start         time.Time
	ops           *serial.Queue
	closed        atomic.Bool

	candMu    sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

func NewEngine(cfg domain.SessionConfig, obs core.EngineObservers, venc VideoEncoderFactory, aenc AudioEncoderFactory,
	tune func(*webrtc.SettingEngine), log zerolog.Logger) (*Engine, error) {
	log = log.With().Str("module", "webrtc").Logger()

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	audioCap := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if cfg.EffectiveAudioCodec() == domain.AudioCodecMultiOpus {
		audioCap = multiOpusCapability(cfg.AudioChannels)
		if err := m.RegisterCodec(webrtc.RTPCodecParameters{RTPCodecCapability: audioCap, PayloadType: multiOpusPT},
			webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("register multiopus: %w", err)
		}
	}

	counters := newFeedbackCounters()
	reg := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, reg); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	reg.Add(&countingFactory{counters: counters})

	se := webrtc.SettingEngine{LoggerFactory: LoggerFactory{Log: log}}
	if cfg.Protocol == domain.ProtocolTCP {
		se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeTCP4, webrtc.NetworkTypeTCP6})
	}
	if tune != nil {
		tune(&se)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(reg), webrtc.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers(cfg.ICEServers)})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	e := &Engine{
		cfg:           cfg,
		log:           log,
		obs:           obs,
		pc:            pc,
		counters:      counters,
		videoEncoders: venc,
		audioEncoders: aenc,
		start:         time.Now(),
		ops:           serial.New(),
	}
	if err := e.addTracks(audioCap); err != nil {
		e.ops.Close()
		_ = pc.Close()
		return nil, err
	}
	e.bindCallbacks()
	return e, nil
}

func multiOpusCapability(channels int) webrtc.RTPCodecCapability {
	if _, ok := multiOpusLayouts[channels]; !ok {
		channels = 6
	}
	return webrtc.RTPCodecCapability{
		MimeType:    domain.AudioCodecMultiOpus.MimeType(),
		ClockRate:   48000,
		Channels:    uint16(channels),
		SDPFmtpLine: multiOpusLayouts[channels],
	}
}

func iceServers(urls []string) []webrtc.ICEServer {
	if len(urls) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: append([]string(nil), urls...)}}
}

func (e *Engine) addTracks(audioCap webrtc.RTPCodecCapability) error {
	sendonly := webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendonly}

	audioTrack, err := webrtc.NewTrackLocalStaticSample(audioCap, "audio", streamID)
	if err != nil {
		return fmt.Errorf("audio track: %w", err)
	}
	at, err := e.pc.AddTransceiverFromTrack(audioTrack, sendonly)
	if err != nil {
		return fmt.Errorf("audio transceiver: %w", err)
	}
	e.audio = &audioSink{e: e, log: e.log, track: audioTrack}
	e.senders = append(e.senders, &sender{id: "audio", kind: core.KindAudio, rtp: at.Sender()})

	codec := e.cfg.VideoCodec
	if codec == domain.VideoCodecAuto {
		codec = domain.VideoCodecVP8
	}
	videoCap := webrtc.RTPCodecCapability{MimeType: codec.MimeType(), ClockRate: 90000}

	e.video = &videoSink{e: e, log: e.log}
	if !e.cfg.Simulcast {
		track, err := webrtc.NewTrackLocalStaticSample(videoCap, "video", streamID)
		if err != nil {
			return fmt.Errorf("video track: %w", err)
		}
		vt, err := e.pc.AddTransceiverFromTrack(track, sendonly)
		if err != nil {
			return fmt.Errorf("video transceiver: %w", err)
		}
		e.video.layers = []*layer{{scale: 1, track: track}}
		e.senders = append(e.senders, &sender{id: "video", kind: core.KindVideo, rtp: vt.Sender()})
		return nil
	}

	var vs *webrtc.RTPSender
	for _, l := range simulcastLayers {
		track, err := webrtc.NewTrackLocalStaticSample(videoCap, "video", streamID, webrtc.WithRTPStreamID(l.rid))
		if err != nil {
			return fmt.Errorf("video track %s: %w", l.rid, err)
		}
		if vs == nil {
			vt, err := e.pc.AddTransceiverFromTrack(track, sendonly)
			if err != nil {
				return fmt.Errorf("video transceiver: %w", err)
			}
			vs = vt.Sender()
		} else if err := vs.AddEncoding(track); err != nil {
			return fmt.Errorf("simulcast encoding %s: %w", l.rid, err)
		}
		e.video.layers = append(e.video.layers, &layer{rid: l.rid, scale: l.scale, track: track})
	}
	e.senders = append(e.senders, &sender{id: "video", kind: core.KindVideo, rtp: vs})
	return nil
}

func (e *Engine) bindCallbacks() {
	e.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		cand := core.Candidate{}
		if c != nil {
			init := c.ToJSON()
			cand.Candidate = init.Candidate
			if init.SDPMid != nil {
				cand.Mid = *init.SDPMid
			}
			if init.SDPMLineIndex != nil {
				cand.MLineIndex = int(*init.SDPMLineIndex)
			}
		}
		if e.obs.Candidates != nil {
			e.ops.Push(func() { e.obs.Candidates.LocalCandidate(cand) })
		}
	})
	e.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		e.log.Info().Str("ice_state", s.String()).Msg("ICE state")
		if e.obs.ICE != nil {
			st := iceState(s)
			e.ops.Push(func() { e.obs.ICE.ICEStateChanged(st) })
		}
	})
	e.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		e.log.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if e.obs.Connection != nil {
			st := connectionState(s)
			e.ops.Push(func() { e.obs.Connection.ConnectionStateChanged(st) })
		}
	})
	for _, s := range e.senders {
		if s.kind == core.KindVideo && e.cfg.Simulcast {
			for _, l := range e.video.layers {
				go e.readRTCP(func() ([]rtcp.Packet, interceptor.Attributes, error) {
					return s.rtp.ReadSimulcastRTCP(l.rid)
				}, true)
			}
			continue
		}
		go e.readRTCP(s.rtp.ReadRTCP, s.kind == core.KindVideo)
	}
}

// readRTCP drains sender feedback so interceptors see it and forwards keyframe requests.
func (e *Engine) readRTCP(read func() ([]rtcp.Packet, interceptor.Attributes, error), video bool) {
	for {
		pkts, _, err := read()
		if err != nil {
			return
		}
		if !video {
			continue
		}
		for _, p := range pkts {
			switch p.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				e.log.Debug().Msg("keyframe requested")
				e.video.requestKeyframe()
			}
		}
	}
}

func (e *Engine) CreateOffer(obs core.OfferObserver) {
	ok := e.ops.Push(func() {
		offer, err := e.pc.CreateOffer(nil)
		if err != nil {
			obs.OfferFailed(err)
			return
		}
		obs.OfferCreated(core.Description{Type: core.SDPTypeOffer, SDP: offer.SDP})
	})
	if !ok {
		go obs.OfferFailed(ErrEngineClosed)
	}
}

func (e *Engine) SetLocalDescription(d core.Description, obs core.DescriptionObserver) {
	e.setDescription(d, obs, e.pc.SetLocalDescription, false)
}

func (e *Engine) SetRemoteDescription(d core.Description, obs core.DescriptionObserver) {
	e.setDescription(d, obs, e.pc.SetRemoteDescription, true)
}

func (e *Engine) setDescription(d core.Description, obs core.DescriptionObserver,
	apply func(webrtc.SessionDescription) error, remote bool) {
	ok := e.ops.Push(func() {
		if err := apply(webrtc.SessionDescription{Type: sdpType(d.Type), SDP: d.SDP}); err != nil {
			obs.DescriptionFailed(err)
			return
		}
		if remote {
			e.flushCandidates()
		}
		obs.DescriptionSet()
	})
	if !ok {
		go obs.DescriptionFailed(ErrEngineClosed)
	}
}

func (e *Engine) flushCandidates() {
	e.candMu.Lock()
	e.remoteSet = true
	pending := e.pending
	e.pending = nil
	e.candMu.Unlock()
	for _, c := range pending {
		if err := e.pc.AddICECandidate(c); err != nil {
			e.log.Warn().Err(err).Str("candidate", c.Candidate).Msg("buffered candidate rejected")
		}
	}
}

// AddICECandidate buffers candidates that arrive before the remote description.
// An empty candidate marks the end of remote candidates and keeps its place in the buffer.
func (e *Engine) AddICECandidate(c core.Candidate) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	init := webrtc.ICECandidateInit{Candidate: c.Candidate}
	if c.Candidate != "" {
		mid, idx := c.Mid, uint16(c.MLineIndex)
		init.SDPMLineIndex = &idx
		if mid != "" {
			init.SDPMid = &mid
		}
	}

	e.candMu.Lock()
	if !e.remoteSet {
		e.pending = append(e.pending, init)
		e.candMu.Unlock()
		return nil
	}
	e.candMu.Unlock()
	return e.pc.AddICECandidate(init)
}

func (e *Engine) Senders() []core.Sender {
	out := make([]core.Sender, 0, len(e.senders))
	for _, s := range e.senders {
		out = append(out, s)
	}
	return out
}

func (e *Engine) GetStats(s core.Sender, obs core.StatsObserver) {
	ok := e.ops.Push(func() { obs.StatsDelivered(e.report(s)) })
	if !ok {
		go obs.StatsDelivered(core.SenderReport{SenderID: s.ID(), Kind: s.Kind(), Err: ErrEngineClosed})
	}
}

func (e *Engine) report(s core.Sender) core.SenderReport {
	r := core.SenderReport{SenderID: s.ID(), Kind: s.Kind()}
	c := e.counters.of(s.Kind())
	r.PacketsSent = c.packets.Load()
	r.BytesSent = c.bytes.Load()
	r.PLICount = c.pli.Load()
	r.FIRCount = c.fir.Load()
	r.NACKCount = c.nack.Load()

	for _, st := range e.pc.GetStats() {
		switch v := st.(type) {
		case webrtc.TransportStats:
			r.TransportBytesSent = max(r.TransportBytesSent, v.BytesSent)
			r.TransportBytesReceived = max(r.TransportBytesReceived, v.BytesReceived)
		case webrtc.DataChannelStats:
			r.DataChannelMessagesSent += v.MessagesSent
			r.DataChannelBytesSent += v.BytesSent
			r.DataChannelMessagesReceived += v.MessagesReceived
			r.DataChannelBytesReceived += v.BytesReceived
		}
	}

	if s.Kind() == core.KindVideo {
		e.video.fill(&r)
	} else {
		e.audio.fill(&r)
	}
	return r
}

func (e *Engine) VideoSink() core.VideoSink { return e.video }
func (e *Engine) AudioSink() core.AudioSink { return e.audio }

func (e *Engine) NowMicros() int64 { return time.Since(e.start).Microseconds() }

// Close is idempotent. Queued operations still run and fail against the closed connection.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.ops.Close()
	err := e.pc.Close()
	e.video.close()
	e.audio.close()
	if err != nil {
		e.log.Error().Err(err).Msg("close error")
		return err
	}
	e.log.Info().Msg("closed")
	return nil
}

func sdpType(t core.SDPType) webrtc.SDPType {
	if t == core.SDPTypeAnswer {
		return webrtc.SDPTypeAnswer
	}
	return webrtc.SDPTypeOffer
}

func iceState(s webrtc.ICEConnectionState) core.ICEState {
	switch s {
	case webrtc.ICEConnectionStateChecking:
		return core.ICEStateChecking
	case webrtc.ICEConnectionStateConnected:
		return core.ICEStateConnected
	case webrtc.ICEConnectionStateCompleted:
		return core.ICEStateCompleted
	case webrtc.ICEConnectionStateDisconnected:
		return core.ICEStateDisconnected
	case webrtc.ICEConnectionStateFailed:
		return core.ICEStateFailed
	case webrtc.ICEConnectionStateClosed:
		return core.ICEStateClosed
	default:
		return core.ICEStateNew
	}
}

func connectionState(s webrtc.PeerConnectionState) core.ConnectionState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return core.ConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return core.ConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return core.ConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return core.ConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return core.ConnectionStateClosed
	default:
		return core.ConnectionStateNew
	}
}

var _ core.TransportEngine = (*Engine)(nil)
