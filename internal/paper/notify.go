// Package paper provides notification delivery for version changes.
package paper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NotificationEvent is raised when the observed version differs from the
// stored one. HasPrevious is false on the first observation.
type NotificationEvent struct {
	Previous    string
	HasPrevious bool
	Current     string
}

// Message renders the chat announcement for the event.
func (e NotificationEvent) Message() string {
	return fmt.Sprintf("New Paper Version: %s", e.Current)
}

// Notifier delivers notification events.
type Notifier interface {
	Notify(ctx context.Context, event NotificationEvent) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event NotificationEvent) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event NotificationEvent) error {
	return f(ctx, event)
}

// MultiNotifier fans an event out to several notifiers. Every notifier is
// called even when an earlier one fails.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier combines notifiers, skipping nil entries.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify sends event to every notifier and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, event NotificationEvent) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of combined notifiers.
func (m *MultiNotifier) Len() int {
	return len(m.notifiers)
}

// WebhookNotifier posts events to a Discord compatible webhook URL.
type WebhookNotifier struct {
	URL    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts {"content": message} to the webhook.
func (w *WebhookNotifier) Notify(ctx context.Context, event NotificationEvent) error {
	body, err := json.Marshal(map[string]string{"content": event.Message()})
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: webhook post: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: webhook returned status %d: %s", ErrNetwork, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
