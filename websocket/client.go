package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 10000

	// Outbound queue capacity per connection
	sendBufferSize = 256
)

var (
	// ErrConnClosed is returned by Send once the connection is shut down.
	ErrConnClosed = errors.New("connection closed")

	// ErrSendBufferFull is returned when the peer cannot keep up with its
	// outbound queue. The router treats it like any other send failure.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client wraps one websocket session. It carries the opaque connection
// identifier the registry keys on; the socket itself is never used as a key.
type Client struct {
	id        ConnID
	displayID string
	conn      *websocket.Conn
	send      chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an upgraded websocket connection with a fresh identifier.
func NewClient(conn *websocket.Conn, displayID string) *Client {
	return &Client{
		id:        ConnID(uuid.NewString()),
		displayID: displayID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
	}
}

// ID returns the connection identifier issued at construction.
func (c *Client) ID() ConnID {
	return c.id
}

// Send queues one message for delivery to the peer. It never blocks: a closed
// connection or a full queue is reported as an error so the caller can clean
// the connection up.
func (c *Client) Send(message []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- message:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Close shuts the session down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump pumps queued messages to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
