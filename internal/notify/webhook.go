package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/tally/internal/config"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when a secret is set.
const SignatureHeader = "X-Tally-Signature"

// WebhookPublisher POSTs terminal job events as JSON. Progress events are not sent.
type WebhookPublisher struct {
	client *resty.Client
	url    string
	secret string
}

// NewWebhookPublisher creates a webhook publisher.
func NewWebhookPublisher(cfg config.WebhookConfig) *WebhookPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)
	client.SetRetryCount(cfg.RetryCount)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return &WebhookPublisher{
		client: client,
		url:    cfg.URL,
		secret: cfg.Secret,
	}
}

// Publish implements Publisher.
func (w *WebhookPublisher) Publish(ctx context.Context, event Event) error {
	if !event.Terminal() {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode webhook event: %w", err)
	}

	req := w.client.R().
		SetContext(ctx).
		SetBody(body)
	if w.secret != "" {
		req.SetHeader(SignatureHeader, Sign(w.secret, body))
	}

	resp, err := req.Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
