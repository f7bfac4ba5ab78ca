package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/bennyh960/queue-manager/pkg/archive"
	"github.com/bennyh960/queue-manager/pkg/qrcode"
	"github.com/bennyh960/queue-manager/pkg/queue"
)

// GenerateQRCodePayload is the payload for the GenerateQRCode handler.
type GenerateQRCodePayload struct {
	Content    string `json:"content"`
	Size       int    `json:"size,omitempty"`
	ArchiveKey string `json:"archive_key"`
}

// NewGenerateQRCode builds a handler that renders content as a PNG QR
// code and uploads it to durable storage under ArchiveKey.
func NewGenerateQRCode(uploader Uploader) queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, p GenerateQRCodePayload) error {
		png, err := qrcode.Generate(p.Content, p.Size)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrGenerateQRCodeFailed, err)
		}

		if err := uploader.Put(ctx, p.ArchiveKey, png, "image/png"); err != nil {
			if errors.Is(err, archive.ErrInvalidPath) {
				return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
			return fmt.Errorf("%w: %w", ErrGenerateQRCodeFailed, err)
		}
		return nil
	})
}
