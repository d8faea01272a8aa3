package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSender POSTs messages to a single endpoint.
type WebhookSender struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewWebhookSender creates a sender whose every call is bounded by timeout.
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{url: url, timeout: timeout, client: &http.Client{}}
}

// Send delivers msg once. Non-2xx responses are returned as errors.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
