package search

import (
	"context"
	"fmt"
	"time"

	"ragchat/pkg/ai"
)

// Indexer upserts extracted text into the search index, attaching the
// supplied metadata verbatim and, when an embedder is configured, a vector
// embedding of the full text.
type Indexer struct {
	index    Index
	embedder ai.Embedder
}

// NewIndexer builds an indexer. embedder may be nil for backends that do not
// require vectors.
func NewIndexer(index Index, embedder ai.Embedder) *Indexer {
	return &Indexer{index: index, embedder: embedder}
}

// IndexDocument indexes text under the given identity and returns the
// document ID. An embedding failure is an index error, never silently
// skipped.
func (ix *Indexer) IndexDocument(ctx context.Context, id, title, text string, metadata map[string]string) (string, error) {
	doc := Document{
		ID:        id,
		Title:     title,
		Content:   text,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
	if ix.embedder != nil {
		embedding, err := ix.embedder.EmbedText(ctx, text)
		if err != nil {
			return "", fmt.Errorf("%w: embed document: %v", ErrIndex, err)
		}
		doc.Embedding = embedding
	}
	if err := ix.index.Upsert(ctx, doc); err != nil {
		return "", fmt.Errorf("%w: upsert: %v", ErrIndex, err)
	}
	return id, nil
}
