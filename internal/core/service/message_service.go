package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/qbridge/chat-service/internal/core/domain"
	"github.com/qbridge/chat-service/internal/core/ports"
)

// MessageService appends to and reads from the message log.
// It does not check membership; callers authorize first.
type MessageService struct {
	repo ports.MessageRepository
	now  func() time.Time
	log  zerolog.Logger
}

// NewMessageService returns a MessageService backed by repo.
func NewMessageService(repo ports.MessageRepository, log zerolog.Logger) *MessageService {
	return &MessageService{repo: repo, now: time.Now, log: log}
}

// Append trims body and persists it as a new message. It returns once the
// repository acknowledged the write. An empty body is rejected with
// domain.ErrInvalidBody before the repository is touched.
func (s *MessageService) Append(ctx context.Context, conversationID, senderID, body string) (*domain.Message, error) {
	trimmed, err := domain.NormalizeBody(body)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           trimmed,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	s.log.Debug().
		Str("conversation_id", conversationID).
		Str("message_id", msg.ID).
		Int64("seq", msg.Seq).
		Msg("message persisted")

	return msg, nil
}

// Recent returns up to limit of the newest messages in chronological order.
// A limit outside 1..domain.RecentLimit is clamped to domain.RecentLimit.
func (s *MessageService) Recent(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 || limit > domain.RecentLimit {
		limit = domain.RecentLimit
	}

	newestFirst, err := s.repo.Latest(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	if len(newestFirst) == 0 {
		return []*domain.Message{}, nil
	}
	if len(newestFirst) > limit {
		newestFirst = newestFirst[:limit]
	}
	return lo.Reverse(newestFirst), nil
}
