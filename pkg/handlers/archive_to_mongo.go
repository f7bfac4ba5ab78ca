package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

// ArchiveToMongoPayload is the payload for the ArchiveToMongo handler.
type ArchiveToMongoPayload struct {
	Collection string          `json:"collection"`
	Document   json.RawMessage `json:"document"`
}

// Database is the narrow slice of *mongo.Database that ArchiveToMongo
// depends on, so tests can substitute a fake without a running MongoDB.
type Database interface {
	Collection(name string) *mongo.Collection
}

// NewArchiveToMongo builds a handler that inserts a document into a
// MongoDB collection for long-term archival.
func NewArchiveToMongo(db Database) queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, p ArchiveToMongoPayload) error {
		if p.Collection == "" {
			return fmt.Errorf("%w: collection is required", ErrInvalidPayload)
		}

		var doc map[string]any
		if err := json.Unmarshal(p.Document, &doc); err != nil {
			return fmt.Errorf("%w: document is not a JSON object: %w", ErrInvalidPayload, err)
		}

		if _, err := db.Collection(p.Collection).InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("%w: %w", ErrArchiveToMongoFailed, err)
		}
		return nil
	})
}
