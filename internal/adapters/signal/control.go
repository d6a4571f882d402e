package signal

import "strconv"

func (c *Client) handlePing(w *wsConn) {
	if err := c.sendJSON(w, typeMsg{Type: typePong}); err != nil {
		c.log.Debug().Err(err).Msg("pong")
	}
}

func itoa(v int) string { return strconv.Itoa(v) }
