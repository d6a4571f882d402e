package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dkeye/Publisher/internal/core"
)

func (c *Client) writePump(ctx context.Context, w *wsConn, done chan struct{}) {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-w.send:
			if !ok {
				_ = w.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error().Err(err).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Warn().Err(err).Msg("writePump ping")
				return
			}
		}
	}
}

func (c *Client) readPump(w *wsConn, events core.SignalingEvents) {
	defer func() {
		w.Close()
		if !c.closing.Load() {
			c.disconnected.Do(events.Disconnected)
		}
	}()

	pongWait := c.pingPeriod * 10 / 9
	w.conn.SetReadLimit(c.readLimit)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if !c.closing.Load() {
				c.log.Warn().Err(err).Msg("readPump read error")
			}
			return
		}
		_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(w, events, data)
	}
}

func (c *Client) handleMessage(w *wsConn, events core.SignalingEvents, data []byte) {
	var env typeMsg
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Error().Err(err).Msg("bad json")
		return
	}

	switch env.Type {
	case typeLoggedIn:
		c.log.Info().Msg("logged in")
		events.LoggedIn()
	case typeLoginError:
		events.LoggedInError(c.errorReason(data))
	case typeAnswer:
		var m answerMsg
		if err := json.Unmarshal(data, &m); err != nil {
			c.log.Error().Err(err).Msg("bad answer payload")
			events.OpenedError("malformed answer")
			return
		}
		events.Opened(m.SDP)
	case typePublishError:
		events.OpenedError(c.errorReason(data))
	case typeCandidate:
		var m candidateMsg
		if err := json.Unmarshal(data, &m); err != nil {
			c.log.Error().Err(err).Msg("bad candidate payload")
			return
		}
		events.RemoteCandidate(m.SDPMid, m.SDPMLineIndex, m.Candidate)
	case typeEndOfCandidates:
		events.RemoteCandidate("", 0, "")
	case typePing:
		c.handlePing(w)
	case typePong:
	case typeError:
		reason := c.errorReason(data)
		c.log.Warn().Str("reason", reason).Msg("server error")
		events.ServerError(reason)
	default:
		c.log.Warn().Str("type", env.Type).Msg("unknown signal")
	}
}

func (c *Client) errorReason(data []byte) string {
	var m errorMsg
	if err := json.Unmarshal(data, &m); err != nil {
		return "unknown error"
	}
	if m.Error == "" {
		return "code " + itoa(m.Code)
	}
	return m.Error
}
