package ports

import (
	"context"

	"github.com/qbridge/chat-service/internal/core/domain"
)

// TokenVerifier checks a bearer token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// MembershipAuthority decides whether an identity may read or write a
// conversation. Results must not be cached by callers.
type MembershipAuthority interface {
	Authorize(ctx context.Context, identity domain.Identity, conversationID string) error
}

// MessageStore appends and reads messages.
type MessageStore interface {
	Append(ctx context.Context, conversationID, senderID, body string) (*domain.Message, error)
	Recent(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
}

// ConversationLister backs the conversation list endpoint.
type ConversationLister interface {
	ListConversations(ctx context.Context, identity domain.Identity) ([]*domain.Conversation, error)
}
