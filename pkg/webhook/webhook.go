// Package webhook provides a single-attempt HTTP webhook transport with
// HMAC request signing and circuit breaker protection. It deliberately
// does not retry: a Task already gets retried at the queue level (see
// pkg/handlers.NewDeliverWebhook), so a second retry loop in here would
// only let the two disagree about how many attempts a delivery actually
// got. Backoff strategies live in this package too; their only caller is
// handlers.NewDeliverWebhook, which uses them to space the Send attempts
// it makes within a single task run.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers a webhook payload over HTTP in a single attempt, with
// optional signing and circuit breaker support. Zero value is not
// usable; use NewSender.
type Sender struct {
	client *http.Client
}

// NewSender creates a webhook sender with a connection-pooled HTTP client
// tuned for many small, short-lived outbound requests.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewSenderWithClient creates a webhook sender using a caller-supplied
// HTTP client, for custom transports or testing.
func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// Send marshals data to JSON and POSTs it to webhookURL once. It does not
// retry: a caller that wants attempts spaced out with backoff (as
// handlers.NewDeliverWebhook does) owns that loop itself and calls Send
// again. A failure whose status code indicates the request itself was
// bad wraps ErrPermanentFailure so callers can skip retrying it.
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload to JSON: %w", err)
	}

	if err := s.validateInputs(webhookURL, payload); err != nil {
		return err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	client := s.client
	if options.httpClient != nil {
		client = options.httpClient
	}

	if options.circuitBreaker != nil && !options.circuitBreaker.Allow() {
		return ErrCircuitOpen
	}

	result, err := s.attemptDelivery(ctx, client, webhookURL, payload, options)
	result.Attempt = 1

	if options.onDelivery != nil {
		options.onDelivery(result)
	}

	if options.circuitBreaker != nil {
		if err == nil {
			options.circuitBreaker.RecordSuccess()
		} else {
			options.circuitBreaker.RecordFailure()
		}
	}

	if err == nil {
		return nil
	}

	if isPermanentError(result.StatusCode, err) {
		return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
	}
	return fmt.Errorf("%w: %w", ErrWebhookDeliveryFailed, err)
}

func (s *Sender) validateInputs(webhookURL string, payload []byte) error {
	if webhookURL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	return nil
}

func (s *Sender) attemptDelivery(ctx context.Context, client *http.Client, webhookURL string, payload []byte, options *sendOptions) (DeliveryResult, error) {
	start := time.Now()
	result := DeliveryResult{}

	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		result.Duration = time.Since(start)
		result.Error = err
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "queue-manager-webhook/1.0")

	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	if options.signatureSecret != "" {
		sigHeaders, err := SignPayload(options.signatureSecret, payload)
		if err != nil {
			result.Duration = time.Since(start)
			result.Error = err
			return result, fmt.Errorf("failed to sign payload: %w", err)
		}
		for k, v := range sigHeaders.Headers() {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err
		if reqCtx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}

	defer func() { _ = resp.Body.Close() }()
	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*64))

	if !result.Success {
		errMsg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
		if len(body) > 0 {
			bodyStr := strings.ReplaceAll(string(body), "\n", " ")
			if len(bodyStr) > 200 {
				bodyStr = bodyStr[:200] + "..."
			}
			errMsg += fmt.Sprintf(": %s", bodyStr)
		}
		result.Error = fmt.Errorf("%s", errMsg)
		return result, result.Error
	}

	return result, nil
}

// isPermanentError reports whether a status code indicates a client-side
// failure that a retry cannot fix, with an exception list for status
// codes that are technically 4xx but represent transient conditions.
func isPermanentError(statusCode int, err error) bool {
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case 408, 425, 429:
			return false
		default:
			return true
		}
	}
	return false
}
