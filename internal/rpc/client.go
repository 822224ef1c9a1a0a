package rpc

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/pkg/websocket"
)

const (
	// sendBufferSize is the number of outbound messages queued per connection.
	sendBufferSize = 64

	// maxInFlight bounds concurrently dispatched messages per connection.
	maxInFlight = 16
)

// Client is one WebSocket connection speaking JSON-RPC.
type Client struct {
	// ID is a unique identifier for the client.
	ID string

	server *Server
	conn   *websocket.Connection

	// send is a channel of outbound messages.
	send chan []byte

	// inFlight bounds concurrent dispatch.
	inFlight chan struct{}

	logger *utils.Logger

	// done is closed when the client is disconnected.
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(server *Server, conn *websocket.Connection, logger *utils.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:       id,
		server:   server,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		inFlight: make(chan struct{}, maxInFlight),
		logger:   logger.With("clientId", id),
		done:     make(chan struct{}),
	}
}

// Subscribe routes notifications for topic to this client.
func (c *Client) Subscribe(topic string) {
	c.server.hub.subscribe(c, topic)
}

// enqueue queues message without blocking. A full buffer drops the message.
func (c *Client) enqueue(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	default:
		c.logger.Warn("Client send channel is full, message dropped")
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump reads messages until the connection fails, dispatching each one concurrently.
func (c *Client) readPump(ctx context.Context) {
	var wg sync.WaitGroup
	defer func() {
		c.close()
		wg.Wait()
		c.server.hub.unregister(c)
		c.server.metrics.AddWSConnections(-1)
		c.logger.Debug("Client disconnected")
	}()

	opts := c.server.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	ctx = withSubscriber(ctx, c)
	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrConnectionClosed) {
				c.logger.Debug("Read failed", "error", err.Error())
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		c.server.metrics.IncWSMessages("in")

		message = bytes.TrimSpace(message)
		select {
		case c.inFlight <- struct{}{}:
		case <-c.done:
			return
		}

		wg.Add(1)
		go func() {
			defer func() {
				<-c.inFlight
				wg.Done()
			}()
			if reply := c.server.rpc.Handle(ctx, message); reply != nil {
				c.enqueue(reply)
			}
		}()
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (c *Client) writePump() {
	opts := c.server.opts
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.WriteWithTimeout(websocket.TextMessage, message, opts.WriteWait); err != nil {
				c.logger.Debug("Write failed", "error", err.Error())
				return
			}
			c.server.metrics.IncWSMessages("out")
		case <-ticker.C:
			if err := c.conn.WriteWithTimeout(websocket.PingMessage, nil, opts.WriteWait); err != nil {
				c.logger.Debug("Ping failed", "error", err.Error())
				return
			}
		case <-c.done:
			return
		}
	}
}
