package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/core/domain"
	"github.com/qbridge/chat-service/internal/infrastructure/queue"
)

type stubAuthority struct {
	mu      sync.Mutex
	members map[string][]string
}

func newStubAuthority() *stubAuthority {
	return &stubAuthority{members: make(map[string][]string)}
}

func (a *stubAuthority) set(conversationID string, members ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.members[conversationID] = members
}

func (a *stubAuthority) Authorize(_ context.Context, identity domain.Identity, conversationID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	members, ok := a.members[conversationID]
	if !ok {
		return domain.ErrConversationNotFound
	}
	for _, m := range members {
		if m == identity.SubjectID {
			return nil
		}
	}
	return domain.ErrForbidden
}

type stubStore struct {
	mu        sync.Mutex
	failWith  error
	seq       map[string]int64
	persisted []*domain.Message
}

func newStubStore() *stubStore {
	return &stubStore{seq: make(map[string]int64)}
}

func (s *stubStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *stubStore) Append(_ context.Context, conversationID, senderID, body string) (*domain.Message, error) {
	trimmed, err := domain.NormalizeBody(body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.seq[conversationID]++
	m := &domain.Message{
		ID:             fmt.Sprintf("%s-%d", conversationID, s.seq[conversationID]),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           trimmed,
		Seq:            s.seq[conversationID],
		CreatedAt:      time.Now().UTC(),
	}
	s.persisted = append(s.persisted, m)
	return m, nil
}

func (s *stubStore) Recent(_ context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.persisted {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *stubStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.persisted)
}

type fixture struct {
	router  *Router
	members *stubAuthority
	store   *stubStore
}

func newFixture(t *testing.T, buffer int) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	d := queue.NewDispatcher(4, zerolog.Nop())
	d.Start(ctx)

	members := newStubAuthority()
	store := newStubStore()
	return &fixture{
		router:  NewRouter(members, store, d, RouterConfig{OutboundBuffer: buffer}, zerolog.Nop()),
		members: members,
		store:   store,
	}
}

func identity(subject string) domain.Identity {
	return domain.Identity{SubjectID: subject, Role: domain.RoleOps, ExpiresAt: time.Now().Add(time.Hour)}
}

// next waits for the next outbound event of c.
func next(t *testing.T, c *Conn) Event {
	t.Helper()
	select {
	case ev := <-c.Outbound():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event on %s", c.ID())
		return Event{}
	}
}

// quiet asserts that nothing is queued for c.
func quiet(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case ev := <-c.Outbound():
		t.Fatalf("unexpected event on %s: %+v", c.ID(), ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func messageOf(t *testing.T, ev Event) *domain.Message {
	t.Helper()
	if ev.Name != EventMessageNew {
		t.Fatalf("expected %s, got %s", EventMessageNew, ev.Name)
	}
	payload, ok := ev.Data.(MessagePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.Data)
	}
	return payload.Message
}
