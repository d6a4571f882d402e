// Package signal is the websocket signaling client used to log in, publish and trickle candidates.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/domain"
)

const (
	writeWait        = 5 * time.Second
	closeWait        = 2 * time.Second
	handshakeTimeout = 10 * time.Second
	sendQueue        = 32
)

var ErrBadURL = errors.New("signaling url must be ws, wss, http or https")

// Factory creates one Client per publish attempt.
type Factory struct {
	PingPeriod time.Duration
	ReadLimit  int64
	Log        zerolog.Logger
}

func (f *Factory) NewSignalingClient(cfg domain.SessionConfig, mode domain.Mode) (core.SignalingClient, error) {
	return NewClient(cfg, mode, f.PingPeriod, f.ReadLimit, f.Log)
}

// Client implements core.SignalingClient over a websocket carrying JSON messages.
type Client struct {
	creds      domain.Credentials
	label      string
	mode       domain.Mode
	pingPeriod time.Duration
	readLimit  int64
	dialer     websocket.Dialer
	log        zerolog.Logger

	mu         sync.Mutex
	conn       *wsConn
	cancel     context.CancelFunc
	writerDone chan struct{}

	closing      atomic.Bool
	disconnected sync.Once
}

func NewClient(cfg domain.SessionConfig, mode domain.Mode, pingPeriod time.Duration, readLimit int64, log zerolog.Logger) (*Client, error) {
	if _, err := normalizeURL(cfg.SignalingURL()); err != nil {
		return nil, err
	}
	if pingPeriod <= 0 {
		pingPeriod = 30 * time.Second
	}
	if readLimit <= 0 {
		readLimit = 1 << 16
	}
	return &Client{
		creds:      cfg.Credentials,
		label:      cfg.StreamName,
		mode:       mode,
		pingPeriod: pingPeriod,
		readLimit:  readLimit,
		dialer:     websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		log:        log.With().Str("module", "signal").Logger(),
	}, nil
}

func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", ErrBadURL
	}
	if u.Host == "" {
		return "", ErrBadURL
	}
	return u.String(), nil
}

// Connect dials, starts the pumps and sends the login request.
func (c *Client) Connect(rawURL string, events core.SignalingEvents) bool {
	target, err := normalizeURL(rawURL)
	if err != nil {
		c.log.Error().Err(err).Str("url", rawURL).Msg("bad url")
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		cancel()
		return false
	}
	c.cancel = cancel
	c.mu.Unlock()

	ws, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		cancel()
		if c.closing.Load() {
			c.log.Info().Str("url", target).Msg("dial aborted by disconnect")
		} else {
			c.log.Error().Err(err).Str("url", target).Msg("dial")
		}
		return false
	}
	conn := newWSConn(ws, sendQueue)

	// Disconnect may have run while dialing; it found no connection to close.
	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		conn.Close()
		cancel()
		c.log.Info().Str("url", target).Msg("disconnected while dialing")
		return false
	}
	c.conn = conn
	c.writerDone = make(chan struct{})
	writerDone := c.writerDone
	c.mu.Unlock()

	c.log.Info().Str("url", target).Msg("connected")
	go c.writePump(ctx, conn, writerDone)
	go c.readPump(conn, events)

	if err := c.sendJSON(conn, loginMsg{
		Type:     typeLogin,
		User:     c.creds.UserID,
		Password: c.creds.Password,
		Label:    c.label,
		Mode:     c.mode.String(),
	}); err != nil {
		c.log.Error().Err(err).Msg("send login")
		c.Disconnect(false)
		return false
	}
	return true
}

func (c *Client) Open(sdp, videoCodec, audioCodec, label string, audio bool) bool {
	conn := c.current()
	if conn == nil {
		return false
	}
	err := c.sendJSON(conn, publishMsg{
		Type:       typePublish,
		SDP:        sdp,
		VideoCodec: videoCodec,
		AudioCodec: audioCodec,
		Label:      label,
		Audio:      audio,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("send publish")
		return false
	}
	return true
}

func (c *Client) Trickle(mid string, index int, candidate string, isEnd bool) {
	conn := c.current()
	if conn == nil {
		return
	}
	var msg any = candidateMsg{Type: typeCandidate, Candidate: candidate, SDPMid: mid, SDPMLineIndex: index}
	if isEnd {
		msg = typeMsg{Type: typeEndOfCandidates}
	}
	if err := c.sendJSON(conn, msg); err != nil {
		c.log.Warn().Err(err).Bool("end", isEnd).Msg("send candidate")
	}
}

// Disconnect says goodbye and closes the socket. Only the first call has an effect.
// With wait it lets the write pump flush the queue first.
func (c *Client) Disconnect(wait bool) {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	conn, cancel, writerDone := c.conn, c.cancel, c.writerDone
	c.mu.Unlock()
	if conn == nil {
		if cancel != nil {
			cancel()
		}
		return
	}
	_ = c.sendJSON(conn, typeMsg{Type: typeBye})
	if wait {
		conn.finish()
		select {
		case <-writerDone:
		case <-time.After(closeWait):
			c.log.Warn().Msg("close timed out")
		}
	}
	conn.Close()
	cancel()
	c.log.Info().Bool("wait", wait).Msg("disconnected")
}

func (c *Client) current() *wsConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) sendJSON(conn *wsConn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return conn.TrySend(b)
}
