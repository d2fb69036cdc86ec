// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"apptrack_worker/core/domain"
	"apptrack_worker/core/port/out"
)

// =============================================================================
// MongoDB Message Archive Adapter
// =============================================================================

const collectionInboundMessages = "inbound_messages"

// MessageArchiveAdapter implements out.MessageArchive using MongoDB. Raw
// inbound messages are retained for a bounded window so a misclassification
// can be investigated against the original text, then expire via TTL.
type MessageArchiveAdapter struct {
	collection *mongo.Collection
	ttl        time.Duration
}

// NewMessageArchiveAdapter creates a new MongoDB message archive adapter.
// A non-positive ttlDays defaults to 90 days.
func NewMessageArchiveAdapter(db *mongo.Database, ttlDays int) *MessageArchiveAdapter {
	if ttlDays <= 0 {
		ttlDays = 90
	}
	return &MessageArchiveAdapter{
		collection: db.Collection(collectionInboundMessages),
		ttl:        time.Duration(ttlDays) * 24 * time.Hour,
	}
}

var _ out.MessageArchive = (*MessageArchiveAdapter)(nil)

// EnsureIndexes creates necessary indexes for the collection.
func (a *MessageArchiveAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "application_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

// messageDocument represents the MongoDB document structure.
type messageDocument struct {
	MessageID     string    `bson:"message_id"`
	ApplicationID string    `bson:"application_id,omitempty"`
	Subject       string    `bson:"subject"`
	Body          string    `bson:"body"`
	SenderAddress string    `bson:"sender_address,omitempty"`
	ReceivedAt    time.Time `bson:"received_at"`
	ArchivedAt    time.Time `bson:"archived_at"`
	ExpiresAt     time.Time `bson:"expires_at"`
}

// Archive stores one raw message. The write is an upsert keyed by message
// ID, so redelivered messages overwrite their own archive entry instead of
// failing on the unique index.
func (a *MessageArchiveAdapter) Archive(ctx context.Context, msg *domain.InboundMessage) error {
	now := time.Now().UTC()

	doc := messageDocument{
		MessageID:     msg.MessageID,
		Subject:       msg.Subject,
		Body:          msg.Body,
		SenderAddress: msg.SenderAddress,
		ReceivedAt:    msg.ReceivedAt,
		ArchivedAt:    now,
		ExpiresAt:     now.Add(a.ttl),
	}
	if msg.ApplicationID != nil {
		doc.ApplicationID = msg.ApplicationID.String()
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"message_id": msg.MessageID}

	if _, err := a.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to archive message: %w", err)
	}

	return nil
}
