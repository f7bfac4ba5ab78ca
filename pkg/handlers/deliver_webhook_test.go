package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennyh960/queue-manager/pkg/handlers"
	"github.com/bennyh960/queue-manager/pkg/webhook"
)

type fakeWebhookSender struct {
	err     error
	calls   int
	gotURL  string
	gotOpts int
}

func (f *fakeWebhookSender) Send(ctx context.Context, url string, data any, opts ...webhook.SendOption) error {
	f.calls++
	f.gotURL = url
	f.gotOpts = len(opts)
	return f.err
}

// zeroBackoff spaces attempts by zero so tests exercising the multi-attempt
// loop don't wait on real timers.
type zeroBackoff struct{}

func (zeroBackoff) NextInterval(int) time.Duration { return 0 }

func TestDeliverWebhook(t *testing.T) {
	t.Parallel()

	t.Run("delivers without a signature when no secret is set", func(t *testing.T) {
		sender := &fakeWebhookSender{}
		h := handlers.NewDeliverWebhook(sender)

		err := h.Handle(context.Background(), mustPayload(t, handlers.DeliverWebhookPayload{
			URL: "https://example.com/hook", Body: []byte(`{"a":1}`),
		}))
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/hook", sender.gotURL)
		assert.Equal(t, 0, sender.gotOpts)
	})

	t.Run("signs when a secret is present", func(t *testing.T) {
		sender := &fakeWebhookSender{}
		h := handlers.NewDeliverWebhook(sender)

		err := h.Handle(context.Background(), mustPayload(t, handlers.DeliverWebhookPayload{
			URL: "https://example.com/hook", Body: []byte(`{"a":1}`), Secret: "shh",
		}))
		require.NoError(t, err)
		assert.Equal(t, 1, sender.gotOpts)
	})

	t.Run("wraps a delivery failure after exhausting its attempt budget", func(t *testing.T) {
		sender := &fakeWebhookSender{err: errors.New("timeout")}
		h := handlers.NewDeliverWebhook(sender,
			handlers.WithDeliverWebhookAttempts(2), handlers.WithDeliverWebhookBackoff(zeroBackoff{}))

		err := h.Handle(context.Background(), mustPayload(t, handlers.DeliverWebhookPayload{
			URL: "https://example.com/hook", Body: []byte(`{}`),
		}))
		assert.ErrorIs(t, err, handlers.ErrDeliverWebhookFailed)
		assert.Equal(t, 2, sender.calls)
	})

	t.Run("stops retrying on a permanent failure", func(t *testing.T) {
		sender := &fakeWebhookSender{err: fmt.Errorf("%w: bad request", webhook.ErrPermanentFailure)}
		h := handlers.NewDeliverWebhook(sender,
			handlers.WithDeliverWebhookAttempts(5), handlers.WithDeliverWebhookBackoff(zeroBackoff{}))

		err := h.Handle(context.Background(), mustPayload(t, handlers.DeliverWebhookPayload{
			URL: "https://example.com/hook", Body: []byte(`{}`),
		}))
		assert.ErrorIs(t, err, handlers.ErrDeliverWebhookFailed)
		assert.Equal(t, 1, sender.calls)
	})

	t.Run("spends its full attempt budget on a transient failure", func(t *testing.T) {
		sender := &fakeWebhookSender{err: errors.New("temporary blip")}
		h := handlers.NewDeliverWebhook(sender,
			handlers.WithDeliverWebhookAttempts(3), handlers.WithDeliverWebhookBackoff(zeroBackoff{}))

		_ = h.Handle(context.Background(), mustPayload(t, handlers.DeliverWebhookPayload{
			URL: "https://example.com/hook", Body: []byte(`{}`),
		}))
		assert.Equal(t, 3, sender.calls)
	})
}
