package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// WebhookBroadcaster posts the per-run summary to a chat webhook
// (Slack-compatible payload shape). It is fired at most once per run.
type WebhookBroadcaster struct {
	url    string
	client *retryablehttp.Client
}

// NewWebhookBroadcaster creates a broadcaster for the given webhook URL.
func NewWebhookBroadcaster(url string) *WebhookBroadcaster {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &WebhookBroadcaster{
		url:    url,
		client: client,
	}
}

// Broadcast posts the message. Failures are reported to the caller, which
// logs them; a dead webhook never affects subscriber delivery.
func (b *WebhookBroadcaster) Broadcast(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("encoding broadcast payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building broadcast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting broadcast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("broadcast webhook returned status %d", resp.StatusCode)
	}
	return nil
}
