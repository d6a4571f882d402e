package session

import (
	"github.com/dkeye/Publisher/internal/app/sdpedit"
	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/domain"
)

// signalingEvents binds SignalingEvents to one attempt.
type signalingEvents struct {
	c  *Controller
	id uint64
}

func (ev signalingEvents) LoggedIn() {
	c := ev.c
	c.mu.Lock()
	if !c.currentLocked(ev.id) || c.state != domain.StateAwaitingLogin {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateNegotiating
	eng := c.engine
	c.mu.Unlock()

	c.attemptLog(ev.id).Info().Msg("logged in, creating offer")
	eng.CreateOffer(offerEvents(ev))
}

func (ev signalingEvents) LoggedInError(reason string) {
	ev.c.fail(ev.id, loginError(reason))
}

func (ev signalingEvents) Opened(answer string) {
	c := ev.c
	c.mu.Lock()
	if !c.currentLocked(ev.id) || c.state != domain.StateAwaitingAnswer {
		c.mu.Unlock()
		return
	}
	eng, editor := c.engine, c.editor
	c.mu.Unlock()

	rewritten, err := editor.RewriteAnswer(answer)
	if err != nil {
		c.fail(ev.id, negotiationError("rewrite answer", err))
		return
	}
	eng.SetRemoteDescription(core.Description{Type: core.SDPTypeAnswer, SDP: rewritten}, remoteEvents(ev))
}

func (ev signalingEvents) OpenedError(reason string) {
	ev.c.fail(ev.id, openError(wrapReason(ErrOpenFailed, reason)))
}

func (ev signalingEvents) RemoteCandidate(mid string, index int, candidate string) {
	c := ev.c
	c.mu.Lock()
	if !c.currentLocked(ev.id) {
		c.mu.Unlock()
		return
	}
	eng, proto := c.engine, c.cfg.Protocol
	c.mu.Unlock()

	log := c.attemptLog(ev.id)
	candidate = sdpedit.CleanCandidate(candidate)
	if candidate == "" {
		log.Info().Msg("remote candidate gathering complete")
		if err := eng.AddICECandidate(core.Candidate{Mid: mid, MLineIndex: index}); err != nil {
			log.Warn().Err(err).Msg("end of remote candidates")
		}
		return
	}
	if !sdpedit.AllowCandidate(candidate, proto) {
		log.Debug().Str("candidate", candidate).Str("protocol", proto.String()).Msg("ignoring remote candidate")
		return
	}
	if err := eng.AddICECandidate(core.Candidate{Mid: mid, MLineIndex: index, Candidate: candidate}); err != nil {
		log.Warn().Err(err).Str("candidate", candidate).Msg("add remote candidate")
	}
}

func (ev signalingEvents) Disconnected() {
	ev.c.closeRemote(ev.id, disconnectedError())
}

func (ev signalingEvents) ServerError(reason string) {
	ev.c.fail(ev.id, serverError(reason))
}

// offerEvents receives the engine's offer.
type offerEvents signalingEvents

func (ev offerEvents) OfferCreated(d core.Description) {
	c := ev.c
	c.mu.Lock()
	if !c.currentLocked(ev.id) || c.state != domain.StateNegotiating {
		c.mu.Unlock()
		return
	}
	eng, editor := c.engine, c.editor
	c.mu.Unlock()

	rewritten, err := editor.RewriteOffer(d.SDP)
	if err != nil {
		c.fail(ev.id, negotiationError("rewrite offer", err))
		return
	}

	c.mu.Lock()
	if !c.currentLocked(ev.id) {
		c.mu.Unlock()
		return
	}
	c.offer = rewritten
	c.mu.Unlock()

	// The engine keeps its own offer; the rewritten copy is what the server sees.
	eng.SetLocalDescription(d, localEvents(ev))
}

func (ev offerEvents) OfferFailed(err error) {
	ev.c.fail(ev.id, negotiationError("create offer", err))
}

// localEvents completes SetLocalDescription and sends the publish request.
type localEvents signalingEvents

func (ev localEvents) DescriptionSet() {
	c := ev.c
	c.mu.Lock()
	if !c.currentLocked(ev.id) || c.state != domain.StateNegotiating {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateAwaitingAnswer
	sig, offer, cfg := c.signaling, c.offer, c.cfg
	c.mu.Unlock()

	c.attemptLog(ev.id).Info().Msg("local description set, publishing")
	if !sig.Open(offer, cfg.VideoCodec.String(), cfg.AudioCodec.String(), cfg.StreamName, true) {
		c.fail(ev.id, openError(ErrOpenRejected))
	}
}

func (ev localEvents) DescriptionFailed(err error) {
	ev.c.fail(ev.id, negotiationError("set local description", err))
}

// remoteEvents completes SetRemoteDescription.
type remoteEvents signalingEvents

func (ev remoteEvents) DescriptionSet() {
	c := ev.c
	c.mu.Lock()
	if !c.currentLocked(ev.id) || c.state != domain.StateAwaitingAnswer {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateConnected
	c.capturing = true
	c.live.Store(true)
	c.startStatsLocked()
	c.tasks.Push(c.host.BeginCapture)
	c.mu.Unlock()

	c.attemptLog(ev.id).Info().Msg("remote description set, connected")
}

func (ev remoteEvents) DescriptionFailed(err error) {
	ev.c.fail(ev.id, negotiationError("set remote description", err))
}

// engineEvents binds the engine observers to one attempt.
type engineEvents signalingEvents

func (ev engineEvents) LocalCandidate(cand core.Candidate) {
	c := ev.c
	c.mu.Lock()
	if !c.currentLocked(ev.id) || c.signaling == nil {
		c.mu.Unlock()
		return
	}
	sig := c.signaling
	c.mu.Unlock()
	sig.Trickle(cand.Mid, cand.MLineIndex, cand.Candidate, cand.Candidate == "")
}

func (ev engineEvents) ICEStateChanged(s core.ICEState) {
	ev.c.attemptLog(ev.id).Info().Str("ice_state", s.String()).Msg("ICE state")
	if s == core.ICEStateFailed {
		ev.c.fail(ev.id, iceError())
	}
}

func (ev engineEvents) ConnectionStateChanged(s core.ConnectionState) {
	ev.c.attemptLog(ev.id).Info().Str("peer_connection_state", s.String()).Msg("Peer state")
	if s == core.ConnectionStateFailed {
		ev.c.fail(ev.id, peerError())
	}
}
