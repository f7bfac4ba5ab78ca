package handlers_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennyh960/queue-manager/pkg/handlers"
)

type fakeDocumentIndexer struct {
	resp *opensearchapi.Response
	err  error
}

func (f *fakeDocumentIndexer) Do(ctx context.Context, transport opensearchapi.Transport) (*opensearchapi.Response, error) {
	return f.resp, f.err
}

func newFakeResponse(statusCode int) *opensearchapi.Response {
	return &opensearchapi.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(http.NoBody),
	}
}

func TestIndexDocument(t *testing.T) {
	t.Parallel()

	t.Run("rejects a missing index", func(t *testing.T) {
		h := handlers.NewIndexDocument(nil, func(p handlers.IndexDocumentPayload) handlers.DocumentIndexer {
			return &fakeDocumentIndexer{resp: newFakeResponse(http.StatusOK)}
		})
		err := h.Handle(context.Background(), mustPayload(t, handlers.IndexDocumentPayload{
			Document: []byte(`{}`),
		}))
		assert.ErrorIs(t, err, handlers.ErrInvalidPayload)
	})

	t.Run("succeeds on a 2xx response", func(t *testing.T) {
		h := handlers.NewIndexDocument(nil, func(p handlers.IndexDocumentPayload) handlers.DocumentIndexer {
			return &fakeDocumentIndexer{resp: newFakeResponse(http.StatusCreated)}
		})
		err := h.Handle(context.Background(), mustPayload(t, handlers.IndexDocumentPayload{
			Index: "events", Document: []byte(`{"a":1}`),
		}))
		require.NoError(t, err)
	})

	t.Run("fails on a transport error", func(t *testing.T) {
		h := handlers.NewIndexDocument(nil, func(p handlers.IndexDocumentPayload) handlers.DocumentIndexer {
			return &fakeDocumentIndexer{err: errors.New("connection refused")}
		})
		err := h.Handle(context.Background(), mustPayload(t, handlers.IndexDocumentPayload{
			Index: "events", Document: []byte(`{}`),
		}))
		assert.ErrorIs(t, err, handlers.ErrIndexDocumentFailed)
	})

	t.Run("fails on an error status response", func(t *testing.T) {
		h := handlers.NewIndexDocument(nil, func(p handlers.IndexDocumentPayload) handlers.DocumentIndexer {
			return &fakeDocumentIndexer{resp: newFakeResponse(http.StatusInternalServerError)}
		})
		err := h.Handle(context.Background(), mustPayload(t, handlers.IndexDocumentPayload{
			Index: "events", Document: []byte(`{}`),
		}))
		assert.ErrorIs(t, err, handlers.ErrIndexDocumentFailed)
	})
}
