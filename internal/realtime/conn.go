package realtime

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/qbridge/chat-service/internal/core/domain"
)

// ErrConnectionClosed is returned for operations on a disconnected Conn.
var ErrConnectionClosed = errors.New("connection closed")

// Conn is one authenticated client. Its identity is fixed at admission.
// Outbound events are queued without blocking; the queue is never closed,
// Done is closed on disconnect instead.
type Conn struct {
	id       string
	identity domain.Identity

	mu     sync.Mutex
	closed bool
	rooms  map[string]struct{}

	out  chan Event
	done chan struct{}
}

func newConn(identity domain.Identity, buffer int) *Conn {
	return &Conn{
		id:       uuid.NewString(),
		identity: identity,
		rooms:    make(map[string]struct{}),
		out:      make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

func (c *Conn) ID() string                { return c.id }
func (c *Conn) Identity() domain.Identity { return c.identity }

// Outbound yields events queued for the client.
func (c *Conn) Outbound() <-chan Event { return c.out }

// Done is closed once the connection has been disconnected.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Rooms returns the conversations the connection is subscribed to.
func (c *Conn) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// Closed reports whether Disconnect has run for the connection.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// deliver queues ev. It reports false only when the queue is full; events for
// a closed connection are silently dropped. Holding mu keeps an enqueue from
// landing after Disconnect has drained the queue.
func (c *Conn) deliver(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.out <- ev:
		return true
	default:
		return false
	}
}

// drain discards events still queued after disconnect.
func (c *Conn) drain() {
	for {
		select {
		case <-c.out:
		default:
			return
		}
	}
}
