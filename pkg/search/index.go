package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrIndex marks failures of the search/index backend, including embedding
// failures during indexing.
var ErrIndex = errors.New("index service error")

// Document is one indexed knowledge-base document.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Result is one ranked hit from a query.
type Result struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// Index is the search backend contract. Implementations must support
// concurrent upserts.
type Index interface {
	Upsert(ctx context.Context, doc Document) error
	Query(ctx context.Context, text string, topK int) ([]Result, error)
}

// DocumentID derives a stable document identity from the object location, so
// queue redelivery of the same object upserts the same document instead of
// indexing a duplicate.
func DocumentID(bucket, key string) string {
	sum := sha256.Sum256([]byte(bucket + "/" + key))
	return "doc-" + hex.EncodeToString(sum[:])[:16]
}
