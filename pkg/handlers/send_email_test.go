package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennyh960/queue-manager/pkg/handlers"
)

type fakeEmailSender struct {
	resp postmark.EmailResponse
	err  error
	got  postmark.Email
}

func (f *fakeEmailSender) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	f.got = email
	return f.resp, f.err
}

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestSendEmail(t *testing.T) {
	t.Parallel()

	t.Run("rejects an invalid recipient", func(t *testing.T) {
		h := handlers.NewSendEmail(&fakeEmailSender{}, handlers.SendEmailConfig{FromAddress: "noreply@example.com"})
		err := h.Handle(context.Background(), mustPayload(t, handlers.SendEmailPayload{
			To: "not-an-email", Subject: "hi",
		}))
		assert.ErrorIs(t, err, handlers.ErrInvalidPayload)
	})

	t.Run("rejects a missing subject", func(t *testing.T) {
		h := handlers.NewSendEmail(&fakeEmailSender{}, handlers.SendEmailConfig{FromAddress: "noreply@example.com"})
		err := h.Handle(context.Background(), mustPayload(t, handlers.SendEmailPayload{
			To: "user@example.com",
		}))
		assert.ErrorIs(t, err, handlers.ErrInvalidPayload)
	})

	t.Run("sends through the client and forwards the from address", func(t *testing.T) {
		sender := &fakeEmailSender{resp: postmark.EmailResponse{ErrorCode: 0}}
		h := handlers.NewSendEmail(sender, handlers.SendEmailConfig{FromAddress: "noreply@example.com"})

		err := h.Handle(context.Background(), mustPayload(t, handlers.SendEmailPayload{
			To: "user@example.com", Subject: "Welcome", BodyHTML: "<p>hi</p>",
		}))
		require.NoError(t, err)
		assert.Equal(t, "noreply@example.com", sender.got.From)
		assert.Equal(t, "user@example.com", sender.got.To)
	})

	t.Run("fails on a transport error", func(t *testing.T) {
		sender := &fakeEmailSender{err: errors.New("connection refused")}
		h := handlers.NewSendEmail(sender, handlers.SendEmailConfig{FromAddress: "noreply@example.com"})

		err := h.Handle(context.Background(), mustPayload(t, handlers.SendEmailPayload{
			To: "user@example.com", Subject: "Welcome",
		}))
		assert.ErrorIs(t, err, handlers.ErrSendEmailFailed)
	})

	t.Run("fails on a non-zero postmark error code", func(t *testing.T) {
		sender := &fakeEmailSender{resp: postmark.EmailResponse{ErrorCode: 300, Message: "invalid tag"}}
		h := handlers.NewSendEmail(sender, handlers.SendEmailConfig{FromAddress: "noreply@example.com"})

		err := h.Handle(context.Background(), mustPayload(t, handlers.SendEmailPayload{
			To: "user@example.com", Subject: "Welcome",
		}))
		assert.ErrorIs(t, err, handlers.ErrSendEmailFailed)
	})
}
