package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

// IndexDocumentPayload is the payload for the IndexDocument handler.
type IndexDocumentPayload struct {
	Index      string          `json:"index"`
	DocumentID string          `json:"document_id,omitempty"`
	Document   json.RawMessage `json:"document"`
}

// DocumentIndexer is the subset of the OpenSearch API used by
// IndexDocument.
type DocumentIndexer interface {
	Do(ctx context.Context, transport opensearchapi.Transport) (*opensearchapi.Response, error)
}

// IndexRequestFactory builds the index request for a payload. Production
// code passes a factory that wraps opensearchapi.IndexRequest; tests can
// substitute a fake.
type IndexRequestFactory func(p IndexDocumentPayload) DocumentIndexer

// NewIndexDocument builds a handler that publishes a document to an
// OpenSearch index via the supplied transport.
func NewIndexDocument(transport opensearchapi.Transport, newRequest IndexRequestFactory) queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, p IndexDocumentPayload) error {
		if p.Index == "" {
			return fmt.Errorf("%w: index is required", ErrInvalidPayload)
		}

		resp, err := newRequest(p).Do(ctx, transport)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIndexDocumentFailed, err)
		}
		defer resp.Body.Close()
		if resp.IsError() {
			return fmt.Errorf("%w: opensearch returned status %s", ErrIndexDocumentFailed, resp.Status())
		}
		return nil
	})
}

// DefaultIndexRequestFactory builds a standard opensearchapi.IndexRequest
// from the payload, using the document ID when present.
func DefaultIndexRequestFactory(p IndexDocumentPayload) DocumentIndexer {
	return opensearchapi.IndexRequest{
		Index:      p.Index,
		DocumentID: p.DocumentID,
		Body:       bytes.NewReader(p.Document),
	}
}
