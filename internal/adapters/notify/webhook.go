package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook posts each message as JSON to a configured URL — a generalization
// of the Telegram Bot API sink the pack's other Polymarket trader uses,
// adapted to a plain webhook since the platform this message type belongs to
// (chat, Slack, Discord, …) is an operator choice rather than fixed at
// compile time.
type Webhook struct {
	url        string
	httpClient *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{url: url, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type webhookPayload struct {
	Text string `json:"text"`
}

func (w *Webhook) Send(ctx context.Context, message string) error {
	if w.url == "" {
		return nil
	}
	body, err := json.Marshal(webhookPayload{Text: message})
	if err != nil {
		return fmt.Errorf("notify.Webhook.Send: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify.Webhook.Send: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify.Webhook.Send: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify.Webhook.Send: status %d", resp.StatusCode)
	}
	return nil
}
