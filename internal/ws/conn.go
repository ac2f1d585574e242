package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// Inbound frames may carry base64 images.
	maxMessageSize = 8 << 20

	// Per-connection outbound queue. A consumer that falls this far behind
	// is disconnected rather than allowed to stall fan-out for anyone else.
	sendQueueSize = 64
)

// Conn is one live channel of one authenticated user. A user may hold any
// number of Conns concurrently (devices, tabs); each carries no state beyond
// its identity and its outbound queue.
type Conn struct {
	id     string
	userID string
	sock   *websocket.Conn

	send      chan outbound
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(userID string, sock *websocket.Conn) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		userID: userID,
		sock:   sock,
		send:   make(chan outbound, sendQueueSize),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// enqueue offers an event to the connection without blocking. It reports
// false when the queue is full or the connection is closing; a full queue
// also closes the connection (backpressure means the peer is gone or stuck).
func (c *Conn) enqueue(event outbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- event:
		return true
	default:
		log.Printf("warning: dropping slow websocket consumer for user %s", c.userID)
		c.close()
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.sock != nil {
			c.sock.Close()
		}
	})
}

// writePump serializes all writes to the socket. It owns the write side
// entirely; nothing else may call WriteMessage.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case event := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("warning: failed to marshal %s event: %v", event.Event, err)
				continue
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump delivers inbound envelopes to handle until the peer disconnects.
func (c *Conn) readPump(handle func(*Conn, Envelope)) {
	defer c.close()

	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("warning: websocket read error for user %s: %v", c.userID, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.enqueue(outbound{Event: EventError, Data: ErrorPayload{Message: "malformed event"}})
			continue
		}
		handle(c, env)
	}
}
