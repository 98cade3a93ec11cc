package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WebhookNotifier posts timeout events to the front-end so it can message
// the user. One event per call, JSON body, short timeout.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type notifyEvent struct {
	Event            string `json:"event"`
	User             string `json:"user"`
	Channel          string `json:"channel"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
}

func (n *WebhookNotifier) Warn(ctx context.Context, user, channel string, remaining time.Duration) error {
	return n.post(ctx, notifyEvent{
		Event:            "session_warning",
		User:             user,
		Channel:          channel,
		RemainingSeconds: int(remaining / time.Second),
	})
}

func (n *WebhookNotifier) Expired(ctx context.Context, user, channel string) error {
	return n.post(ctx, notifyEvent{Event: "session_expired", User: user, Channel: channel})
}

func (n *WebhookNotifier) post(ctx context.Context, event notifyEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook: %s", resp.Status)
	}
	n.logger.Debug("notify.delivered", "event", event.Event, "user", event.User)
	return nil
}
