package signal

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// wsConn owns one websocket and its outbound queue.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu         sync.RWMutex
	closed     bool
	sendClosed bool
}

func newWSConn(conn *websocket.Conn, queue int) *wsConn {
	return &wsConn{conn: conn, send: make(chan []byte, queue)}
}

func (c *wsConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.sendClosed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// finish stops accepting frames; the write pump drains the queue and sends a close frame.
func (c *wsConn) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
	_ = c.conn.Close()
	c.mu.Unlock()
}
