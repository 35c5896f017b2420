package notify

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event statuses rendered downstream as the success / failure email templates.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Event is the structured payload of an ingestion notification.
type Event struct {
	Status           string `json:"status"`
	Message          string `json:"message"`
	UserEmail        string `json:"user_email,omitempty"`
	OriginalFilename string `json:"original_filename"`
	DocumentID       string `json:"document_id,omitempty"`
}

// Publisher delivers a subject and JSON payload to the notification channel.
type Publisher interface {
	Publish(ctx context.Context, subject string, body []byte) error
}

// Notifier dispatches ingestion events best-effort: delivery errors are
// logged, never propagated, and delivery is skipped entirely when the event
// has no recipient address.
type Notifier struct {
	publisher Publisher
}

// NewNotifier wraps a publisher.
func NewNotifier(publisher Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Notify publishes one event. It never fails the caller.
func (n *Notifier) Notify(ctx context.Context, subject string, event Event) {
	if event.UserEmail == "" {
		slog.Warn("notification skipped, no recipient address", "subject", subject, "filename", event.OriginalFilename)
		return
	}
	if n.publisher == nil {
		slog.Warn("notification skipped, no publisher configured", "subject", subject)
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("notification payload encode failed", "subject", subject, "err", err)
		return
	}
	if err := n.publisher.Publish(ctx, subject, body); err != nil {
		slog.Error("notification delivery failed", "subject", subject, "err", err)
		return
	}
	slog.Info("notification sent", "subject", subject, "status", event.Status)
}
