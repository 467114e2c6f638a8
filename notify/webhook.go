package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vigil/log"
)

// Webhook posts events as JSON to a configured endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns a webhook notifier for the given URL. An empty URL
// yields a notifier that silently skips delivery.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Notify(ev Event) error {
	if w.url == "" {
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSink writes every event to the diagnostics log.
type LogSink struct{}

func (LogSink) Notify(ev Event) error {
	if ev.Points != 0 {
		log.Warnf("event %s: %s (%d points)", ev.Kind, ev.Message, ev.Points)
	} else {
		log.Warnf("event %s: %s", ev.Kind, ev.Message)
	}
	return nil
}
