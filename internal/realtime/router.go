// Package realtime keeps the in-memory room state of connected clients and
// delivers persisted messages to every subscriber of a conversation.
//
// Locks are always taken in the order registry, connection, room, and none is
// held across store I/O. Sends for one conversation run on a single
// dispatcher worker, so every subscriber observes messages in store order.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/api/metrics"
	"github.com/qbridge/chat-service/internal/core/domain"
	"github.com/qbridge/chat-service/internal/core/ports"
	"github.com/qbridge/chat-service/internal/infrastructure/queue"
)

const defaultOutboundBuffer = 64

// Serializer runs jobs sharing a key one at a time, in submission order.
type Serializer interface {
	Do(ctx context.Context, key string, fn queue.Job) error
}

// RouterConfig tunes per-connection resources.
type RouterConfig struct {
	// OutboundBuffer is the number of events a connection may have queued
	// before it is treated as a slow consumer and disconnected.
	OutboundBuffer int
}

type room struct {
	mu   sync.Mutex
	subs map[*Conn]struct{}
}

// ErrShuttingDown is returned for connections admitted after Shutdown.
var ErrShuttingDown = errors.New("router shutting down")

// Router tracks connections and their room subscriptions.
type Router struct {
	mu       sync.Mutex
	rooms    map[string]*room
	conns    map[*Conn]struct{}
	stopping bool

	members ports.MembershipAuthority
	store   ports.MessageStore
	serial  Serializer
	buffer  int
	now     func() time.Time
	log     zerolog.Logger
}

// NewRouter returns a Router that checks membership with members, persists
// through store and orders sends per conversation on serial.
func NewRouter(members ports.MembershipAuthority, store ports.MessageStore, serial Serializer, cfg RouterConfig, log zerolog.Logger) *Router {
	buffer := cfg.OutboundBuffer
	if buffer <= 0 {
		buffer = defaultOutboundBuffer
	}
	return &Router{
		rooms:   make(map[string]*room),
		conns:   make(map[*Conn]struct{}),
		members: members,
		store:   store,
		serial:  serial,
		buffer:  buffer,
		now:     time.Now,
		log:     log,
	}
}

// Connect registers a connection for an already verified identity. Once
// Shutdown has run the returned Conn is already closed.
func (r *Router) Connect(identity domain.Identity) *Conn {
	c := newConn(identity, r.buffer)

	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		c.closed = true
		close(c.done)
		return c
	}
	r.conns[c] = struct{}{}
	r.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	r.log.Debug().Str("conn_id", c.id).Str("subject", identity.SubjectID).Msg("connection registered")
	return c
}

// Join subscribes c to conversationID after a fresh membership check.
// Joining a room twice has no further effect.
func (r *Router) Join(ctx context.Context, c *Conn, conversationID string) error {
	if err := r.ready(c); err != nil {
		return err
	}
	if err := r.members.Authorize(ctx, c.identity, conversationID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	if _, ok := c.rooms[conversationID]; ok {
		return nil
	}

	rm, ok := r.rooms[conversationID]
	if !ok {
		rm = &room{subs: make(map[*Conn]struct{})}
		r.rooms[conversationID] = rm
		metrics.RoomsActive.Inc()
	}
	rm.mu.Lock()
	rm.subs[c] = struct{}{}
	rm.mu.Unlock()

	c.rooms[conversationID] = struct{}{}
	return nil
}

// Send persists body as a message from c and broadcasts it to every
// subscriber of the conversation, the sender included. Membership is checked
// again on every send. Nothing is broadcast when the append fails.
func (r *Router) Send(ctx context.Context, c *Conn, conversationID, body string) (*domain.Message, error) {
	if err := r.ready(c); err != nil {
		return nil, err
	}
	if err := r.members.Authorize(ctx, c.identity, conversationID); err != nil {
		return nil, err
	}

	var msg *domain.Message
	err := r.serial.Do(ctx, conversationID, func(ctx context.Context) error {
		start := time.Now()
		m, err := r.store.Append(ctx, conversationID, c.identity.SubjectID, body)
		if err != nil {
			metrics.AppendDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return err
		}
		metrics.MessagesPersistedTotal.Inc()
		r.broadcast(conversationID, messageEvent(m))
		metrics.AppendDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		msg = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	return msg, nil
}

// Disconnect removes c from every room and discards rooms left empty. Events
// still queued for c are dropped. Calling it again is a no-op.
func (r *Router) Disconnect(c *Conn) {
	r.mu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		r.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)

	for id := range c.rooms {
		rm, ok := r.rooms[id]
		if !ok {
			continue
		}
		rm.mu.Lock()
		delete(rm.subs, c)
		empty := len(rm.subs) == 0
		rm.mu.Unlock()
		if empty {
			delete(r.rooms, id)
			metrics.RoomsActive.Dec()
		}
	}
	c.rooms = make(map[string]struct{})
	delete(r.conns, c)
	c.mu.Unlock()
	r.mu.Unlock()

	c.drain()
	metrics.ConnectionsActive.Dec()
	r.log.Debug().Str("conn_id", c.id).Str("subject", c.identity.SubjectID).Msg("connection closed")
}

// Shutdown disconnects every registered connection and refuses new ones.
func (r *Router) Shutdown() {
	r.mu.Lock()
	r.stopping = true
	conns := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		r.Disconnect(c)
	}
}

// RoomCount returns the number of rooms with at least one subscriber.
func (r *Router) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// ConnCount returns the number of registered connections.
func (r *Router) ConnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Subscribers returns the number of connections subscribed to conversationID.
func (r *Router) Subscribers(conversationID string) int {
	rm := r.lookup(conversationID)
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.subs)
}

// ready rejects operations on closed connections and expired identities.
func (r *Router) ready(c *Conn) error {
	if c.Closed() {
		return ErrConnectionClosed
	}
	if c.identity.Expired(r.now()) {
		return domain.ErrTokenExpired
	}
	return nil
}

func (r *Router) lookup(conversationID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[conversationID]
}

// broadcast queues ev on a snapshot of the room. Connections that cannot
// accept it are disconnected once the snapshot has been walked.
func (r *Router) broadcast(conversationID string, ev Event) {
	rm := r.lookup(conversationID)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	snapshot := make([]*Conn, 0, len(rm.subs))
	for c := range rm.subs {
		snapshot = append(snapshot, c)
	}
	rm.mu.Unlock()

	var slow []*Conn
	for _, c := range snapshot {
		if c.deliver(ev) {
			metrics.BroadcastDeliveriesTotal.Inc()
			continue
		}
		slow = append(slow, c)
	}

	for _, c := range slow {
		metrics.SlowConsumersTotal.Inc()
		r.log.Warn().
			Str("conn_id", c.id).
			Str("conversation_id", conversationID).
			Msg("outbound queue full, disconnecting slow consumer")
		r.Disconnect(c)
	}
}

// reply queues ev for c alone.
func (r *Router) reply(c *Conn, ev Event) {
	if !c.deliver(ev) {
		metrics.SlowConsumersTotal.Inc()
		r.Disconnect(c)
	}
}
