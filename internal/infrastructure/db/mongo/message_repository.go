package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qbridge/chat-service/internal/core/domain"
	"github.com/qbridge/chat-service/internal/core/ports"
)

const collectionMessages = "messages"

type messageDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `bson:"conversationId"`
	SenderID       string             `bson:"senderId"`
	Body           string             `bson:"body"`
	Seq            int64              `bson:"seq"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func (d *messageDocument) toDomain() *domain.Message {
	return &domain.Message{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID.Hex(),
		SenderID:       d.SenderID,
		Body:           d.Body,
		Seq:            d.Seq,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

// MessageRepository implements ports.MessageRepository on MongoDB. Sequence
// numbers come from seq; durability comes from the client's write concern.
type MessageRepository struct {
	col *mongo.Collection
	seq ports.Sequencer
}

func NewMessageRepository(db *mongo.Database, seq ports.Sequencer) *MessageRepository {
	return &MessageRepository{col: db.Collection(collectionMessages), seq: seq}
}

// Insert assigns the next sequence number and stores m.
func (r *MessageRepository) Insert(ctx context.Context, m *domain.Message) error {
	convID, err := primitive.ObjectIDFromHex(m.ConversationID)
	if err != nil {
		return domain.ErrConversationNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	seq, err := r.seq.Next(ctx, m.ConversationID)
	if err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	doc := messageDocument{
		ID:             primitive.NewObjectID(),
		ConversationID: convID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		Seq:            seq,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.CreatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return err
	}

	m.ID = doc.ID.Hex()
	m.Seq = seq
	return nil
}

// Latest returns up to limit messages newest first.
func (r *MessageRepository) Latest(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	convID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, domain.ErrConversationNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{"conversationId": convID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*domain.Message, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

// EnsureIndexes creates the history index used by Latest. It is unique so a
// sequencer fault cannot produce two messages with the same seq.
func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversationId", Value: 1}, {Key: "seq", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
