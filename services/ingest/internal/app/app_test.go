package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"ragchat/pkg/domain"
	"ragchat/pkg/extract"
	"ragchat/pkg/notify"
	"ragchat/pkg/search"
	"ragchat/pkg/storage"
	"ragchat/pkg/store"
)

type fakeObjects struct {
	contentType string
	statErr     error
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return nil
}

func (f *fakeObjects) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	if f.statErr != nil {
		return storage.ObjectInfo{}, f.statErr
	}
	return storage.ObjectInfo{ContentType: f.contentType, Size: 1024}, nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error { return nil }

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, bucket, key string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type capturePublisher struct {
	mu   sync.Mutex
	sent []notify.Event
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, body []byte) error {
	var event notify.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}
	p.mu.Lock()
	p.sent = append(p.sent, event)
	p.mu.Unlock()
	return nil
}

type fixture struct {
	app       *App
	store     *store.MemoryStore
	index     *search.MemoryIndex
	extractor *fakeExtractor
	published *capturePublisher
}

func newFixture(t *testing.T, objects *fakeObjects, extractor *fakeExtractor) fixture {
	t.Helper()
	memStore := store.NewMemoryStore()
	index := search.NewMemoryIndex()
	published := &capturePublisher{}
	a, err := New(Config{
		Store:     memStore,
		Objects:   objects,
		Extractor: extractor,
		Indexer:   search.NewIndexer(index, nil),
		Notifier:  notify.NewNotifier(published),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return fixture{app: a, store: memStore, index: index, extractor: extractor, published: published}
}

func pdfJob() domain.IngestionJob {
	return domain.IngestionJob{
		Bucket:           "kb",
		Key:              "documents/report.pdf",
		ContentType:      "application/pdf",
		OriginalFilename: "report.pdf",
		UploaderEmail:    "user@example.com",
	}
}

func TestProcessSuccess(t *testing.T) {
	fx := newFixture(t, &fakeObjects{contentType: "application/pdf"}, &fakeExtractor{text: "page one\npage two"})

	if err := fx.app.Process(context.Background(), pdfJob()); err != nil {
		t.Fatalf("process: %v", err)
	}

	docID := search.DocumentID("kb", "documents/report.pdf")
	doc, ok := fx.index.Get(docID)
	if !ok {
		t.Fatalf("document not indexed")
	}
	if doc.Content != "page one\npage two" {
		t.Fatalf("indexed content = %q", doc.Content)
	}
	record, ok, err := fx.store.GetDocument(docID)
	if err != nil || !ok {
		t.Fatalf("document record missing: ok=%v err=%v", ok, err)
	}
	if record.Status != domain.StatusSucceeded {
		t.Fatalf("record status = %s, want succeeded", record.Status)
	}
	if len(fx.published.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(fx.published.sent))
	}
	event := fx.published.sent[0]
	if event.Status != notify.StatusSuccess || event.DocumentID != docID {
		t.Fatalf("unexpected notification: %+v", event)
	}
}

func TestProcessUnsupportedFormatFailsBeforeExtraction(t *testing.T) {
	extractor := &fakeExtractor{text: "never"}
	fx := newFixture(t, &fakeObjects{contentType: "image/png"}, extractor)

	job := pdfJob()
	job.ContentType = ""
	err := fx.app.Process(context.Background(), job)
	if !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if extractor.calls != 0 {
		t.Fatalf("extraction service called %d times for unsupported format", extractor.calls)
	}
	if len(fx.published.sent) != 1 || fx.published.sent[0].Status != notify.StatusError {
		t.Fatalf("expected one failure notification, got %+v", fx.published.sent)
	}
}

func TestProcessWithoutRecipientIndexesAndStaysSilent(t *testing.T) {
	fx := newFixture(t, &fakeObjects{contentType: "application/pdf"}, &fakeExtractor{text: "content"})

	job := pdfJob()
	job.UploaderEmail = ""
	if err := fx.app.Process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}
	if fx.index.Len() != 1 {
		t.Fatalf("expected index upsert to occur, len=%d", fx.index.Len())
	}
	if len(fx.published.sent) != 0 {
		t.Fatalf("expected no notifications without recipient, got %d", len(fx.published.sent))
	}
}

func TestProcessExtractionFailurePropagatesAndNotifies(t *testing.T) {
	extractErr := errors.New("analysis backend exploded")
	fx := newFixture(t, &fakeObjects{contentType: "application/pdf"}, &fakeExtractor{err: extractErr})

	err := fx.app.Process(context.Background(), pdfJob())
	if !errors.Is(err, extractErr) {
		t.Fatalf("expected extraction error to propagate, got %v", err)
	}
	docID := search.DocumentID("kb", "documents/report.pdf")
	record, _, _ := fx.store.GetDocument(docID)
	if record.Status != domain.StatusFailed {
		t.Fatalf("record status = %s, want failed", record.Status)
	}
	if len(fx.published.sent) != 1 || fx.published.sent[0].Status != notify.StatusError {
		t.Fatalf("expected failure notification, got %+v", fx.published.sent)
	}
}

func TestProcessRedeliveryUpsertsSameDocument(t *testing.T) {
	fx := newFixture(t, &fakeObjects{contentType: "application/pdf"}, &fakeExtractor{text: "content"})

	job := pdfJob()
	if err := fx.app.Process(context.Background(), job); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := fx.app.Process(context.Background(), job); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if fx.index.Len() != 1 {
		t.Fatalf("redelivery duplicated the document, len=%d", fx.index.Len())
	}
}
