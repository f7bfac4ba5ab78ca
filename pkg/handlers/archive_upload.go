package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/bennyh960/queue-manager/pkg/archive"
	"github.com/bennyh960/queue-manager/pkg/queue"
)

// ArchiveUploadPayload is the payload for the ArchiveUpload handler.
// Content is base64-encoded since JSON task payloads cannot carry raw
// binary safely.
type ArchiveUploadPayload struct {
	Key         string `json:"key"`
	ContentB64  string `json:"content_b64"`
	ContentType string `json:"content_type,omitempty"`
}

// Uploader is the subset of archive.Uploader used by ArchiveUpload.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// NewArchiveUpload builds a handler that persists a base64-encoded blob
// to durable object storage.
func NewArchiveUpload(uploader Uploader) queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, p ArchiveUploadPayload) error {
		body, err := base64.StdEncoding.DecodeString(p.ContentB64)
		if err != nil {
			return fmt.Errorf("%w: content is not valid base64: %w", ErrInvalidPayload, err)
		}

		if err := uploader.Put(ctx, p.Key, body, p.ContentType); err != nil {
			if errors.Is(err, archive.ErrInvalidPath) {
				return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
			return fmt.Errorf("%w: %w", ErrArchiveUploadFailed, err)
		}
		return nil
	})
}
