package connectors

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// WebhookConnector mirrors activity records to an HTTP endpoint owned by the
// test harness.
type WebhookConnector struct {
	url    string
	client *http.Client
}

func NewWebhookConnector(url string) *WebhookConnector {
	return &WebhookConnector{
		url: url,
		client: &http.Client{
			// Sends wait on the mirror, keep it short
			Timeout: 5 * time.Second,
		},
	}
}

func (c *WebhookConnector) Send(ctx context.Context, token string, payload []byte) error {
	if c.url == "" {
		return fmt.Errorf("webhook url is missing")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Token", token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook failed with status: %d", resp.StatusCode)
	}

	return nil
}
