package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type capturePublisher struct {
	mu     sync.Mutex
	sent   []Event
	failed bool
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, body []byte) error {
	if p.failed {
		return errors.New("broker unavailable")
	}
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}
	p.mu.Lock()
	p.sent = append(p.sent, event)
	p.mu.Unlock()
	return nil
}

func TestNotifyDeliversStructuredEvent(t *testing.T) {
	pub := &capturePublisher{}
	n := NewNotifier(pub)

	n.Notify(context.Background(), "File Processing Completed", Event{
		Status:           StatusSuccess,
		Message:          "indexed",
		UserEmail:        "user@example.com",
		OriginalFilename: "report.pdf",
		DocumentID:       "doc-1",
	})

	if len(pub.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(pub.sent))
	}
	got := pub.sent[0]
	if got.Status != StatusSuccess || got.DocumentID != "doc-1" || got.UserEmail != "user@example.com" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestNotifySkipsWhenNoRecipient(t *testing.T) {
	pub := &capturePublisher{}
	n := NewNotifier(pub)

	n.Notify(context.Background(), "File Processing Completed", Event{
		Status:           StatusSuccess,
		OriginalFilename: "report.pdf",
	})

	if len(pub.sent) != 0 {
		t.Fatalf("expected no delivery without recipient, got %d", len(pub.sent))
	}
}

func TestNotifyNeverFailsCaller(t *testing.T) {
	pub := &capturePublisher{failed: true}
	n := NewNotifier(pub)

	// must not panic or surface the broker error
	n.Notify(context.Background(), "File Processing Failed", Event{
		Status:           StatusError,
		Message:          "extraction failed",
		UserEmail:        "user@example.com",
		OriginalFilename: "report.pdf",
	})
}
