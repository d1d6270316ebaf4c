package notifications

import (
	"time"

	"yatube/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	// A peer that sends nothing, not even a pong, for idleTimeout is dropped.
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10
	// Events only flow to the browser; inbound frames are control traffic.
	maxInbound = 512
)

// Client is one notification socket of a signed-in user.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	UserID uint
	// Send queues outbound frames. The hub closes it on unregister.
	Send chan []byte
}

// NewClient creates a client for conn. It receives nothing until registered with hub.
func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{Hub: hub, Conn: conn, UserID: userID, Send: make(chan []byte, sendBuffer)}
}

// Serve forwards queued events to the socket until the peer goes away, then unregisters
// the client. It blocks for the lifetime of the connection.
func (c *Client) Serve() {
	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writeLoop()
	}()

	c.readLoop()
	c.Hub.UnregisterClient(c)
	<-written
	_ = c.Conn.Close()
}

func (c *Client) readLoop() {
	c.Conn.SetReadLimit(maxInbound)
	_ = c.extendReadDeadline()
	c.Conn.SetPongHandler(func(string) error { return c.extendReadDeadline() })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				observability.GlobalLogger.Debug("notification socket closed", "user_id", c.UserID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				// Unregistered: the peer left or the server is shutting down.
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				_ = c.Conn.Close()
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				_ = c.Conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.Conn.Close()
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Client) extendReadDeadline() error {
	return c.Conn.SetReadDeadline(time.Now().Add(idleTimeout))
}

// TrySend queues msg without blocking. It is dropped when the queue is full or the
// client is already unregistered.
func (c *Client) TrySend(msg []byte) {
	defer func() {
		// Send on a channel closed by UnregisterClient.
		_ = recover()
	}()

	select {
	case c.Send <- msg:
	default:
		observability.GlobalLogger.Warn("notification queue full, dropped event", "user_id", c.UserID)
	}
}
