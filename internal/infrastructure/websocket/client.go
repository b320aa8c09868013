package websocket

import (
	"sync"

	"github.com/gorilla/websocket"

	"sociomart/pkg/logger"
)

// Client is one live WebSocket connection. It implements presence.Session.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		done:   make(chan struct{}),
	}
}

// Deliver queues a payload for the connection without blocking. A full
// buffer or a shut-down client returns false; the caller decides what to
// do. The Send channel is never closed, so Deliver may race with shutdown
// from any goroutine.
func (c *Client) Deliver(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// shutdown marks the client closed and signals WritePump to finish.
// Idempotent.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// CloseSuperseded shuts the connection down after a newer connection for
// the same user replaced it.
func (c *Client) CloseSuperseded() {
	c.shutdown()
}

// ReadPump reads frames from the connection and dispatches them until the
// connection drops.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.HandleDisconnect(c)
		c.shutdown()
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error for user %s: %v", c.UserID, err)
			}
			break
		}

		m.HandleClientMessage(c, message)
	}
}

// WritePump drains the send channel onto the connection until shutdown.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		select {
		case <-c.done:
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket write error for user %s: %v", c.UserID, err)
				return
			}
		}
	}
}
