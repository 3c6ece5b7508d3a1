package service

import (
	"context"
	"sort"
	"sync"

	"github.com/qbridge/chat-service/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubConversationRepo struct {
	byID    map[string]*domain.Conversation
	findErr error
	calls   int
}

func newStubConversationRepo(convs ...*domain.Conversation) *stubConversationRepo {
	r := &stubConversationRepo{byID: make(map[string]*domain.Conversation)}
	for _, c := range convs {
		r.byID[c.ID] = c
	}
	return r
}

func (r *stubConversationRepo) FindByID(_ context.Context, id string) (*domain.Conversation, error) {
	r.calls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	c, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	clone := *c
	clone.Members = append([]string(nil), c.Members...)
	return &clone, nil
}

func (r *stubConversationRepo) ListByMember(_ context.Context, memberID string) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	for _, c := range r.byID {
		if c.Active && c.HasMember(memberID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type stubMessageRepo struct {
	mu        sync.Mutex
	insertErr error
	messages  []*domain.Message
	inserts   int
}

func (r *stubMessageRepo) Insert(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		return r.insertErr
	}
	m.Seq = int64(len(r.messages) + 1)
	m.ID = m.ConversationID + "-" + string(rune('a'+len(r.messages)%26))
	clone := *m
	r.messages = append(r.messages, &clone)
	return nil
}

func (r *stubMessageRepo) Latest(_ context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for i := len(r.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if r.messages[i].ConversationID == conversationID {
			clone := *r.messages[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}
