package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/core/domain"
	"github.com/qbridge/chat-service/internal/core/ports"
)

// MembershipService decides access to conversations from the stored member
// set. Every call reads the repository; nothing is cached.
type MembershipService struct {
	repo ports.ConversationRepository
	log  zerolog.Logger
}

// NewMembershipService returns a MembershipService backed by repo.
func NewMembershipService(repo ports.ConversationRepository, log zerolog.Logger) *MembershipService {
	return &MembershipService{repo: repo, log: log}
}

// Authorize returns nil when identity may read and write conversationID,
// domain.ErrConversationNotFound when the conversation is missing or inactive,
// and domain.ErrForbidden when the subject is not a member.
func (s *MembershipService) Authorize(ctx context.Context, identity domain.Identity, conversationID string) error {
	if conversationID == "" {
		return domain.ErrConversationNotFound
	}

	conv, err := s.repo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return domain.ErrConversationNotFound
		}
		return fmt.Errorf("authorize: %w", err)
	}

	if !conv.Active {
		return domain.ErrConversationNotFound
	}
	if !conv.HasMember(identity.SubjectID) {
		s.log.Debug().
			Str("conversation_id", conversationID).
			Str("subject", identity.SubjectID).
			Msg("membership denied")
		return domain.ErrForbidden
	}
	return nil
}

// ListConversations returns the active conversations identity belongs to,
// most recently updated first.
func (s *MembershipService) ListConversations(ctx context.Context, identity domain.Identity) ([]*domain.Conversation, error) {
	if identity.SubjectID == "" {
		return nil, domain.ErrUnauthenticated
	}
	convs, err := s.repo.ListByMember(ctx, identity.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if convs == nil {
		convs = []*domain.Conversation{}
	}
	return convs, nil
}
