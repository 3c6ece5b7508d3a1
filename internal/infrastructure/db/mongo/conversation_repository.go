package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qbridge/chat-service/internal/core/domain"
)

const collectionConversations = "conversations"

// conversationDocument mirrors the layout written by the conversation CRUD
// service.
type conversationDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Type      string             `bson:"type"`
	Name      string             `bson:"name,omitempty"`
	Members   []string           `bson:"members"`
	CreatedBy string             `bson:"createdBy"`
	IsActive  bool               `bson:"isActive"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *conversationDocument) toDomain() *domain.Conversation {
	return &domain.Conversation{
		ID:        d.ID.Hex(),
		Kind:      domain.ConversationKind(d.Type),
		Name:      d.Name,
		Members:   d.Members,
		CreatedBy: d.CreatedBy,
		Active:    d.IsActive,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection(collectionConversations)}
}

// Create inserts c and sets its ID. Conversations are normally written by the
// CRUD service; this is used for seeding and tests.
func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if !c.Kind.Valid() {
		return fmt.Errorf("create conversation: unknown type %q", c.Kind)
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	doc := conversationDocument{
		Type:      string(c.Kind),
		Name:      c.Name,
		Members:   c.Members,
		CreatedBy: c.CreatedBy,
		IsActive:  c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = oid.Hex()
	}
	return nil
}

// FindByID loads a conversation. Ids that are not valid ObjectIDs cannot
// exist and are reported as not found.
func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrConversationNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc conversationDocument
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// ListByMember returns active conversations containing memberID, most
// recently updated first.
func (r *ConversationRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"members": memberID, "isActive": true}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []conversationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*domain.Conversation, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

// EnsureIndexes creates the member lookup index.
func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "members", Value: 1}},
	})
	return err
}
