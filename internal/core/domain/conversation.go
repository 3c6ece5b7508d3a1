package domain

import (
	"time"

	"github.com/samber/lo"
)

// ConversationKind distinguishes one-to-one from group conversations.
type ConversationKind string

const (
	KindDirect ConversationKind = "dm"
	KindGroup  ConversationKind = "group"
)

// Valid reports whether k is a known kind.
func (k ConversationKind) Valid() bool {
	return k == KindDirect || k == KindGroup
}

// Conversation is created by a collaborator service. The chat core only reads
// its member set and active flag.
type Conversation struct {
	ID        string           `json:"id"`
	Kind      ConversationKind `json:"type"`
	Name      string           `json:"name,omitempty"` // group only
	Members   []string         `json:"members"`
	CreatedBy string           `json:"createdBy"`
	Active    bool             `json:"isActive"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// HasMember reports whether subjectID belongs to the member set.
func (c *Conversation) HasMember(subjectID string) bool {
	if subjectID == "" {
		return false
	}
	return lo.Contains(c.Members, subjectID)
}
