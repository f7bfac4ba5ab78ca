package handlers

import (
	"context"
	"fmt"

	"github.com/bennyh960/queue-manager/pkg/billing"
	"github.com/bennyh960/queue-manager/pkg/queue"
)

// ProcessBillingWebhookPayload is the payload for the
// ProcessBillingWebhook handler: the raw body an HTTP receiver accepted
// from Paddle plus its signature header, deferred here so the receiver
// itself can stay a thin, fast ack.
type ProcessBillingWebhookPayload struct {
	RawBody   []byte `json:"raw_body"`
	Signature string `json:"signature"`
}

// BillingWebhookParser is the subset of billing.Provider used by
// ProcessBillingWebhook.
type BillingWebhookParser interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.WebhookEvent, error)
}

// NewProcessBillingWebhook builds a handler that verifies a Paddle
// webhook's signature and normalizes it into a billing.WebhookEvent.
// Unmapped event types are accepted rather than rejected, since a new
// Paddle event should not fail the task; only a bad signature or
// malformed body does.
func NewProcessBillingWebhook(parser BillingWebhookParser) queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, p ProcessBillingWebhookPayload) error {
		if len(p.RawBody) == 0 {
			return fmt.Errorf("%w: raw_body is required", ErrInvalidPayload)
		}
		if p.Signature == "" {
			return fmt.Errorf("%w: signature is required", ErrInvalidPayload)
		}

		if _, err := parser.ParseWebhook(ctx, p.RawBody, p.Signature); err != nil {
			return fmt.Errorf("%w: %w", ErrProcessBillingWebhook, err)
		}
		return nil
	})
}
