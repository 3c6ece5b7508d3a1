package ports

import (
	"context"

	"github.com/qbridge/chat-service/internal/core/domain"
)

// MessageRepository is the durable, ordered log of messages per conversation.
type MessageRepository interface {
	// Insert persists m and fills in ID and Seq. It returns only once the
	// backend acknowledged the write.
	Insert(ctx context.Context, m *domain.Message) error
	// Latest returns at most limit messages of a conversation, newest first.
	Latest(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
}

// Sequencer hands out strictly increasing sequence numbers per conversation
// for backends that have no native ordering column.
type Sequencer interface {
	Next(ctx context.Context, conversationID string) (int64, error)
}
