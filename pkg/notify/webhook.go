package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/connect-watcher/pkg/config"
)

// WebhookChannel POSTs notifications as JSON envelopes
type WebhookChannel struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookChannel creates a webhook channel
func NewWebhookChannel(name string, cfg config.WebhookChannelConfig) *WebhookChannel {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		name:    config.ChannelWebhook + "." + name,
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Channel
func (w *WebhookChannel) Name() string {
	return w.name
}

// Send implements Channel
func (w *WebhookChannel) Send(ctx context.Context, subject string, messages map[string]string) error {
	body, err := json.Marshal(newEnvelope(subject, messages))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// Close implements Channel
func (w *WebhookChannel) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
