package ports

import (
	"context"

	"github.com/qbridge/chat-service/internal/core/domain"
)

// ConversationRepository reads conversations owned by the collaborator CRUD
// service.
type ConversationRepository interface {
	// FindByID returns domain.ErrConversationNotFound when no conversation has
	// the given id, including ids that are malformed for the backend.
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	// ListByMember returns active conversations containing memberID, most
	// recently updated first.
	ListByMember(ctx context.Context, memberID string) ([]*domain.Conversation, error)
}
