package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bennyh960/queue-manager/pkg/queue"
	"github.com/bennyh960/queue-manager/pkg/webhook"
)

// DeliverWebhookPayload is the payload for the DeliverWebhook handler.
type DeliverWebhookPayload struct {
	URL    string          `json:"url"`
	Body   json.RawMessage `json:"body"`
	Secret string          `json:"secret,omitempty"`
}

// WebhookSender is the subset of webhook.Sender used by DeliverWebhook.
type WebhookSender interface {
	Send(ctx context.Context, url string, data any, opts ...webhook.SendOption) error
}

type deliverWebhookConfig struct {
	attempts int
	backoff  webhook.BackoffStrategy
	send     []webhook.SendOption
}

// DeliverWebhookOption configures the attempt budget NewDeliverWebhook
// spends inside a single task run, before handing a remaining failure
// back to the queue's own retry policy.
type DeliverWebhookOption func(*deliverWebhookConfig)

// WithDeliverWebhookAttempts caps the number of Send calls a single task
// run makes, spaced out by backoff. n < 1 is treated as 1.
func WithDeliverWebhookAttempts(n int) DeliverWebhookOption {
	return func(c *deliverWebhookConfig) {
		if n < 1 {
			n = 1
		}
		c.attempts = n
	}
}

// WithDeliverWebhookBackoff overrides the delay strategy between attempts.
func WithDeliverWebhookBackoff(strategy webhook.BackoffStrategy) DeliverWebhookOption {
	return func(c *deliverWebhookConfig) {
		if strategy != nil {
			c.backoff = strategy
		}
	}
}

// WithDeliverWebhookSendOptions forwards additional options to every
// underlying Sender.Send call, e.g. webhook.WithCircuitBreaker for an
// endpoint shared across many enqueued deliveries.
func WithDeliverWebhookSendOptions(opts ...webhook.SendOption) DeliverWebhookOption {
	return func(c *deliverWebhookConfig) {
		c.send = append(c.send, opts...)
	}
}

// NewDeliverWebhook builds a handler that POSTs an already-marshaled JSON
// body to an outbound webhook URL, signing it when a secret is present.
// A task run makes up to config.attempts single Sender.Send calls,
// spaced by config.backoff, before surfacing the failure to the queue's
// own retry cascade. This attempt budget is meant for absorbing a
// transient blip within one run, not for replacing RetryCount: keep
// attempts small relative to a task's MaxRetries.
func NewDeliverWebhook(sender WebhookSender, opts ...DeliverWebhookOption) queue.Handler {
	cfg := &deliverWebhookConfig{attempts: 3, backoff: webhook.DefaultBackoffStrategy()}
	for _, opt := range opts {
		opt(cfg)
	}

	return queue.NewTaskHandler(func(ctx context.Context, p DeliverWebhookPayload) error {
		sendOpts := append([]webhook.SendOption(nil), cfg.send...)
		if p.Secret != "" {
			sendOpts = append(sendOpts, webhook.WithSignature(p.Secret))
		}

		var lastErr error
		for attempt := 1; attempt <= cfg.attempts; attempt++ {
			if attempt > 1 {
				select {
				case <-ctx.Done():
					return fmt.Errorf("%w: %w", ErrDeliverWebhookFailed, ctx.Err())
				case <-time.After(cfg.backoff.NextInterval(attempt - 1)):
				}
			}

			lastErr = sender.Send(ctx, p.URL, p.Body, sendOpts...)
			if lastErr == nil {
				return nil
			}
			if webhook.IsPermanentFailure(lastErr) {
				break
			}
		}

		return fmt.Errorf("%w: %w", ErrDeliverWebhookFailed, lastErr)
	})
}
