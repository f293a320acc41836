package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/telemetry/tracing"
)

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	URL string

	// Headers are added to every request, e.g. an Authorization header.
	Headers map[string]string

	// Timeout bounds a single request.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after a failed delivery.
	// Default: 2
	MaxRetries uint64

	// RetryInterval is the initial delay between retries.
	// Default: 500ms
	RetryInterval time.Duration
}

// WebhookPayload is the JSON body posted to the webhook.
type WebhookPayload struct {
	Severity  mailbox.Severity `json:"severity"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
	Timestamp time.Time        `json:"timestamp"`
}

// WebhookNotifier posts notifications as JSON. Server errors and network
// failures are retried with exponential backoff; 4xx responses are not.
type WebhookNotifier struct {
	config WebhookConfig
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("webhook URL cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 500 * time.Millisecond
	}
	return &WebhookNotifier{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: slog.Default().With("component", "mailbox.notify.webhook"),
	}, nil
}

// Notify implements mailbox.Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, severity mailbox.Severity, subject, body string) error {
	payload, err := json.Marshal(WebhookPayload{
		Severity:  severity,
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = n.config.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, n.config.MaxRetries), ctx)
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		return n.post(ctx, payload)
	}, policy)
	if err != nil {
		n.logger.Error("webhook delivery failed", "attempts", attempt, "error", err)
		return fmt.Errorf("webhook delivery failed after %d attempts: %w", attempt, err)
	}
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.Inject(ctx, req.Header)
	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
}
