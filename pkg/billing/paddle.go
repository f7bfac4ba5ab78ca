// Package billing wraps the Paddle billing API just enough to verify and
// normalize inbound subscription/payment webhooks for asynchronous
// processing. The synchronous HTTP receiver stays outside this module
// (see SPEC_FULL's admin-inspection Non-goal on transport surfaces); it
// only needs to hand the raw body and signature header to a queued
// handlers.ProcessBillingWebhook task once it has accepted the request.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// Config configures a Provider via environment variables, loaded with
// pkg/config.Load. It carries only the webhook secret: this package
// never opens a Paddle API session, so it has no use for an API key.
type Config struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
}

// EventType is a normalized billing event, independent of Paddle's own
// event-name strings.
type EventType string

const (
	EventSubscriptionCreated   EventType = "subscription_created"
	EventSubscriptionUpdated   EventType = "subscription_updated"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventSubscriptionResumed   EventType = "subscription_resumed"
	EventPaymentSucceeded      EventType = "payment_succeeded"
	EventPaymentFailed         EventType = "payment_failed"
)

// WebhookEvent is a normalized view over a verified Paddle webhook body.
type WebhookEvent struct {
	Type           EventType
	ProviderEvent  string
	SubscriptionID string
	CustomerID     string
	Status         string
	PlanID         string
}

// Provider verifies and parses Paddle webhook deliveries. Zero value is
// not usable; use NewProvider.
type Provider struct {
	verifier *paddle.WebhookVerifier
}

// NewProvider builds a Provider from cfg. It only needs the webhook
// secret: the parsing path this package exposes never calls out to the
// Paddle API, so the SDK client itself isn't constructed here.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.WebhookSecret == "" {
		return nil, errors.New("billing: paddle webhook secret is required")
	}
	return &Provider{verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret)}, nil
}

// ParseWebhook verifies signature against payload and extracts a
// normalized WebhookEvent from a Paddle event body.
func (p *Provider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("billing: build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, fmt.Errorf("billing: verify webhook signature: %w", err)
	}
	if !valid {
		return nil, errors.New("billing: webhook signature verification failed")
	}

	var raw struct {
		EventID   string         `json:"event_id"`
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("billing: parse webhook payload: %w", err)
	}

	event := &WebhookEvent{Type: mapPaddleEventType(raw.EventType), ProviderEvent: raw.EventType}

	if id, ok := raw.Data["id"].(string); ok {
		event.SubscriptionID = id
	}
	if status, ok := raw.Data["status"].(string); ok {
		event.Status = status
	}
	if customData, ok := raw.Data["custom_data"].(map[string]any); ok {
		if customerID, ok := customData["customer_id"].(string); ok {
			event.CustomerID = customerID
		}
	}
	if items, ok := raw.Data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				if priceID, ok := price["id"].(string); ok {
					event.PlanID = priceID
				}
			}
		}
	}

	return event, nil
}

// mapPaddleEventType maps a raw Paddle event name to a normalized
// EventType, passing unmapped events through unchanged so a new Paddle
// event doesn't silently disappear.
func mapPaddleEventType(paddleEvent string) EventType {
	switch paddleEvent {
	case "subscription.created", "transaction.completed":
		return EventSubscriptionCreated
	case "subscription.updated":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionCancelled
	case "subscription.resumed":
		return EventSubscriptionResumed
	case "transaction.payment_succeeded":
		return EventPaymentSucceeded
	case "transaction.payment_failed":
		return EventPaymentFailed
	default:
		return EventType(paddleEvent)
	}
}
