// Package websocket provides WebSocket connection handling.
package websocket

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection errors
var (
	ErrConnectionClosed = errors.New("connection closed")
)

// MessageType represents the type of a WebSocket message.
type MessageType int

// Message types
const (
	TextMessage   = MessageType(websocket.TextMessage)
	BinaryMessage = MessageType(websocket.BinaryMessage)
	CloseMessage  = MessageType(websocket.CloseMessage)
	PingMessage   = MessageType(websocket.PingMessage)
	PongMessage   = MessageType(websocket.PongMessage)
)

// NewUpgrader returns an upgrader accepting the given origins. An empty list or
// a "*" entry accepts any origin; a trailing "*" matches by prefix.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, allowed := range allowedOrigins {
				switch {
				case allowed == "*", allowed == origin:
					return true
				case strings.HasSuffix(allowed, "*") && strings.HasPrefix(origin, strings.TrimSuffix(allowed, "*")):
					return true
				}
			}
			return false
		},
	}
}

// Connection wraps a WebSocket connection. Reads must come from a single
// goroutine; writes may come from any.
type Connection struct {
	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// sendMutex is used to synchronize writes to the connection.
	sendMutex sync.Mutex

	// closed indicates whether the connection is closed.
	closed bool

	// closeMutex is used to synchronize access to the closed flag.
	closeMutex sync.RWMutex
}

// NewConnection creates a new connection.
func NewConnection(conn *websocket.Conn) *Connection {
	return &Connection{
		conn: conn,
	}
}

// ReadMessage reads a message from the connection. A normal close by the peer
// is reported as ErrConnectionClosed.
func (c *Connection) ReadMessage() (MessageType, []byte, error) {
	if c.IsClosed() {
		return 0, nil, ErrConnectionClosed
	}

	messageType, message, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.Close()
			return 0, nil, ErrConnectionClosed
		}
		return 0, nil, err
	}

	return MessageType(messageType), message, nil
}

// WriteWithTimeout writes a message to the connection with a timeout.
func (c *Connection) WriteWithTimeout(messageType MessageType, data []byte, timeout time.Duration) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.IsClosed() {
		return ErrConnectionClosed
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer c.conn.SetWriteDeadline(time.Time{})

	err := c.conn.WriteMessage(int(messageType), data)
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.Close()
			return ErrConnectionClosed
		}
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrConnectionClosed
		}
		return err
	}

	return nil
}

// Close closes the connection.
func (c *Connection) Close() error {
	c.closeMutex.Lock()
	defer c.closeMutex.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	return c.conn.Close()
}

// IsClosed returns whether the connection is closed.
func (c *Connection) IsClosed() bool {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()
	return c.closed
}

// SetReadLimit sets the maximum size in bytes for a message read from the peer.
func (c *Connection) SetReadLimit(limit int64) {
	c.conn.SetReadLimit(limit)
}

// SetReadDeadline sets the deadline for future Read calls.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SetPongHandler sets the handler for pong messages.
func (c *Connection) SetPongHandler(h func(string) error) {
	c.conn.SetPongHandler(h)
}

// RemoteAddr returns the remote network address.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
