package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Config locates the Redis instance holding message sequence counters.
type Config struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces the counters. Empty means "chat:seq:".
	KeyPrefix string
	Timeout   time.Duration
}

// Open connects to Redis and returns a Sequencer on it once the server
// answers a ping. Counters are never expired, so the instance must not run
// with an eviction policy that drops persistent keys.
func Open(ctx context.Context, cfg Config) (*Sequencer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = pingTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	seq := NewSequencer(client)
	if cfg.KeyPrefix != "" {
		seq.prefix = cfg.KeyPrefix
	}
	return seq, nil
}
