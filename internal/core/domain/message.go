package domain

import (
	"strings"
	"time"
)

// RecentLimit is the number of messages returned by a history read.
const RecentLimit = 100

// Message is created exactly once by the message store and never changes.
// Seq is assigned by the store and strictly increases within a conversation;
// it is the tie breaker for messages sharing a CreatedAt.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body"`
	Seq            int64     `json:"seq"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NormalizeBody trims surrounding whitespace and rejects empty bodies.
func NormalizeBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", ErrInvalidBody
	}
	return trimmed, nil
}
