package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bennyh960/queue-manager/pkg/handlers"
)

// ArchiveToMongo's success path needs a live *mongo.Collection, which the
// retrieved pack has no fake for (see DESIGN.md's testing notes); these
// cases cover the validation short-circuits that run before the handler
// ever touches its Database dependency, so a nil Database is safe to pass.
func TestArchiveToMongo_Validation(t *testing.T) {
	t.Parallel()

	t.Run("rejects a missing collection", func(t *testing.T) {
		h := handlers.NewArchiveToMongo(nil)
		err := h.Handle(context.Background(), mustPayload(t, handlers.ArchiveToMongoPayload{
			Document: []byte(`{"a":1}`),
		}))
		assert.ErrorIs(t, err, handlers.ErrInvalidPayload)
	})

	t.Run("rejects a document that isn't a JSON object", func(t *testing.T) {
		h := handlers.NewArchiveToMongo(nil)
		err := h.Handle(context.Background(), mustPayload(t, handlers.ArchiveToMongoPayload{
			Collection: "events", Document: []byte(`"not an object"`),
		}))
		assert.ErrorIs(t, err, handlers.ErrInvalidPayload)
	})
}
