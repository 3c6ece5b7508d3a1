package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/qbridge/chat-service/internal/core/ports"
)

const setupTimeout = 10 * time.Second

// defaultTimeout bounds each repository operation.
const defaultTimeout = 10 * time.Second

// Config selects the chat database.
type Config struct {
	URI      string
	Database string
	// Timeout bounds connect, ping and index creation. Zero means setupTimeout.
	Timeout time.Duration
}

// Store is a connected chat database with both repositories on one client.
// Every write is acknowledged by a majority of the replica set and reads go
// to the primary, so a sequence number read back is never older than one
// just written.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	Conversations *ConversationRepository
	Messages      *MessageRepository
}

// Open connects to cfg.URI, pings the primary and ensures the chat indexes
// exist. The unique message index is required for ordering, so a failure to
// create it fails Open.
func Open(ctx context.Context, cfg Config, seq ports.Sequencer) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = setupTimeout
	}
	setupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	client, err := mongo.Connect(setupCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(setupCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:        client,
		db:            db,
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db, seq),
	}
	if err := s.Conversations.EnsureIndexes(setupCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("conversation indexes: %w", err)
	}
	if err := s.Messages.EnsureIndexes(setupCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("message indexes: %w", err)
	}
	return s, nil
}

// Database returns the chat database.
func (s *Store) Database() *mongo.Database { return s.db }

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
