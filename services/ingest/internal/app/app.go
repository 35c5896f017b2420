package app

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"ragchat/pkg/domain"
	"ragchat/pkg/extract"
	"ragchat/pkg/notify"
	"ragchat/pkg/queue"
	"ragchat/pkg/search"
	"ragchat/pkg/storage"
	"ragchat/pkg/store"
)

// The only document type this pipeline can ingest.
const supportedContentType = "application/pdf"

// Notification subjects, rendered downstream as email templates.
const (
	subjectCompleted = "File Processing Completed"
	subjectFailed    = "File Processing Failed"
)

// Config holds runtime configuration for the ingestion orchestrator.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Objects     storage.ObjectStore
	Extractor   extract.Extractor
	Indexer     *search.Indexer
	Notifier    *notify.Notifier
}

// App consumes ingestion jobs and sequences extraction, indexing, and
// notification for each.
type App struct {
	store     store.Store
	objects   storage.ObjectStore
	extractor extract.Extractor
	indexer   *search.Indexer
	notifier  *notify.Notifier
}

// New constructs the ingestion orchestrator.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor required")
	}
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &App{
		store:     dataStore,
		objects:   cfg.Objects,
		extractor: cfg.Extractor,
		indexer:   cfg.Indexer,
		notifier:  cfg.Notifier,
	}, nil
}

// HandleJob adapts Process to the queue handler signature.
func (a *App) HandleJob(ctx context.Context, status queue.JobStatus) error {
	return a.Process(ctx, status.Job)
}

// Process runs the full ingestion pipeline for one job. Any stage failure
// emits a best-effort failure notification and returns the error so the queue
// redelivers the job. The stable document identity makes redelivery an upsert
// rather than a duplicate.
func (a *App) Process(ctx context.Context, job domain.IngestionJob) error {
	docID := search.DocumentID(job.Bucket, job.Key)
	title := job.OriginalFilename
	if title == "" {
		title = path.Base(job.Key)
	}
	slog.Info("ingestion started", "document_id", docID, "key", job.Key)

	now := time.Now().UTC()
	if err := a.store.SaveDocument(domain.Document{
		ID:            docID,
		Title:         title,
		StorageKey:    job.Key,
		ContentType:   job.ContentType,
		Status:        domain.StatusSubmitted,
		UploaderEmail: job.UploaderEmail,
		Metadata: map[string]string{
			"original_filename": title,
			"bucket":            job.Bucket,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return a.failJob(ctx, job, docID, fmt.Errorf("save document record: %w", err))
	}

	info, err := a.objects.Stat(ctx, job.Key)
	if err != nil {
		return a.failJob(ctx, job, docID, fmt.Errorf("stat object: %w", err))
	}
	contentType := job.ContentType
	if contentType == "" {
		contentType = info.ContentType
	}
	if contentType != supportedContentType {
		err := fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, contentType)
		return a.failJob(ctx, job, docID, err)
	}

	_ = a.store.SetDocumentStatus(docID, domain.StatusExtracting, "")
	text, err := a.extractor.Extract(ctx, job.Bucket, job.Key)
	if err != nil {
		return a.failJob(ctx, job, docID, err)
	}

	_ = a.store.SetDocumentStatus(docID, domain.StatusIndexing, "")
	metadata := map[string]string{
		"original_filename": title,
		"uploaded_at":       now.Format(time.RFC3339),
	}
	if job.UploaderEmail != "" {
		metadata["uploader_email"] = job.UploaderEmail
	}
	if _, err := a.indexer.IndexDocument(ctx, docID, title, text, metadata); err != nil {
		return a.failJob(ctx, job, docID, err)
	}

	_ = a.store.SetDocumentStatus(docID, domain.StatusSucceeded, "")
	a.notifier.Notify(ctx, subjectCompleted, notify.Event{
		Status:           notify.StatusSuccess,
		Message:          fmt.Sprintf("Successfully processed file: %s", job.Key),
		UserEmail:        job.UploaderEmail,
		OriginalFilename: title,
		DocumentID:       docID,
	})
	slog.Info("ingestion succeeded", "document_id", docID, "key", job.Key)
	return nil
}

// GetDocument returns a document record by ID.
func (a *App) GetDocument(id string) (domain.Document, bool, error) {
	return a.store.GetDocument(id)
}

// ListDocuments returns document records, newest first.
func (a *App) ListDocuments() ([]domain.Document, error) {
	return a.store.ListDocuments()
}

func (a *App) failJob(ctx context.Context, job domain.IngestionJob, docID string, err error) error {
	slog.Error("ingestion failed", "document_id", docID, "key", job.Key, "err", err)
	_ = a.store.SetDocumentStatus(docID, domain.StatusFailed, err.Error())
	title := job.OriginalFilename
	if title == "" {
		title = path.Base(job.Key)
	}
	a.notifier.Notify(ctx, subjectFailed, notify.Event{
		Status:           notify.StatusError,
		Message:          fmt.Sprintf("Error processing file %s: %v", job.Key, err),
		UserEmail:        job.UploaderEmail,
		OriginalFilename: title,
	})
	return err
}
