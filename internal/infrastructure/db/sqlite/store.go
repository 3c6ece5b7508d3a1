// Package sqlite provides an embedded SQLite backend for conversations and
// messages, used for single-node deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/qbridge/chat-service/internal/core/domain"
)

//go:embed schema.sql
var schema string

// Store persists conversations and messages in one SQLite database. It
// satisfies both ports.ConversationRepository and ports.MessageRepository.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies the embedded schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer keeps AUTOINCREMENT assignment and commit order aligned.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// CreateConversation inserts c with its members and sets its ID when empty.
func (s *Store) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	if !c.Kind.Valid() {
		return fmt.Errorf("create conversation: unknown type %q", c.Kind)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, type, name, created_by, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Kind), c.Name, c.CreatedBy, c.Active, toMillis(c.CreatedAt), toMillis(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	for i, member := range c.Members {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO conversation_members (conversation_id, member_id, position) VALUES (?, ?, ?)`,
			c.ID, member, i)
		if err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}
	return tx.Commit()
}

// FindByID loads a conversation and its members.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, type, name, created_by, is_active, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)

	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	if c.Members, err = s.members(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// ListByMember returns active conversations containing memberID, most
// recently updated first.
func (s *Store) ListByMember(ctx context.Context, memberID string) ([]*domain.Conversation, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT c.id, c.type, c.name, c.created_by, c.is_active, c.created_at, c.updated_at
		 FROM conversations c
		 JOIN conversation_members m ON m.conversation_id = c.id
		 WHERE m.member_id = ? AND c.is_active = 1
		 ORDER BY c.updated_at DESC, c.id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := []*domain.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// Members are loaded after the cursor is closed; the pool holds one
	// connection.
	for _, c := range out {
		if c.Members, err = s.members(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Insert stores m and fills in its ID and Seq from the committed row.
func (s *Store) Insert(ctx context.Context, m *domain.Message) error {
	id := uuid.NewString()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, m.ConversationID, m.SenderID, m.Body, toMillis(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = id
	m.Seq = seq
	return nil
}

// Latest returns up to limit messages newest first.
func (s *Store) Latest(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, conversation_id, sender_id, body, seq, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY seq DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("latest messages: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Message, 0, limit)
	for rows.Next() {
		var (
			m         domain.Message
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.Seq, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = fromMillis(createdAt)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *Store) members(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT member_id FROM conversation_members WHERE conversation_id = ? ORDER BY position`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*domain.Conversation, error) {
	var (
		c                    domain.Conversation
		kind                 string
		active               bool
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &kind, &c.Name, &c.CreatedBy, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Kind = domain.ConversationKind(kind)
	c.Active = active
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}
