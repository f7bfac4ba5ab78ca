// Package handlers provides ready-to-register queue.Handler implementations
// for common background jobs: transactional email, webhook delivery,
// object storage uploads, search indexing, cold-storage archival, and QR
// code generation. Each handler is built with queue.NewTaskHandler so its
// name and payload validation are derived from its payload struct.
package handlers

import (
	"context"
	"fmt"
	"regexp"

	"github.com/mrz1836/postmark"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

// SendEmailPayload is the payload for the SendEmail handler.
type SendEmailPayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

var emailRegexp = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// EmailSender is the subset of the Postmark client used by SendEmail.
type EmailSender interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// SendEmailConfig configures the SendEmail handler.
type SendEmailConfig struct {
	FromAddress string
}

// NewSendEmail builds a handler that delivers transactional email through
// Postmark. It fails (triggering the queue's retry policy) on transport
// errors and on any non-zero Postmark ErrorCode in the response.
func NewSendEmail(client EmailSender, cfg SendEmailConfig) queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, p SendEmailPayload) error {
		if !emailRegexp.MatchString(p.To) {
			return fmt.Errorf("%w: invalid recipient address %q", ErrInvalidPayload, p.To)
		}
		if p.Subject == "" {
			return fmt.Errorf("%w: subject is required", ErrInvalidPayload)
		}

		resp, err := client.SendEmail(ctx, postmark.Email{
			From:       cfg.FromAddress,
			To:         p.To,
			Subject:    p.Subject,
			HTMLBody:   p.BodyHTML,
			Tag:        p.Tag,
			TrackOpens: true,
			TrackLinks: "HtmlOnly",
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSendEmailFailed, err)
		}
		if resp.ErrorCode != 0 {
			return fmt.Errorf("%w: postmark error %d: %s", ErrSendEmailFailed, resp.ErrorCode, resp.Message)
		}
		return nil
	})
}
