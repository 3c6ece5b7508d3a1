package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "chat:seq:"

// Sequencer hands out per-conversation sequence numbers with INCR, which is
// atomic across every process sharing the Redis instance.
// Key format: <prefix><conversation_id>
type Sequencer struct {
	client *redis.Client
	prefix string
}

// NewSequencer creates a Sequencer wrapping the given Redis client.
func NewSequencer(client *redis.Client) *Sequencer {
	return &Sequencer{client: client, prefix: defaultKeyPrefix}
}

// Next returns the next sequence number for conversationID, starting at 1.
func (s *Sequencer) Next(ctx context.Context, conversationID string) (int64, error) {
	n, err := s.client.Incr(ctx, s.key(conversationID)).Result()
	if err != nil {
		return 0, fmt.Errorf("sequence incr: %w", err)
	}
	return n, nil
}

// Ping reports whether Redis is reachable.
func (s *Sequencer) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Sequencer) Close() error {
	return s.client.Close()
}

func (s *Sequencer) key(conversationID string) string {
	return s.prefix + conversationID
}
