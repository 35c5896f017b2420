package search

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryIndex keeps indexed documents in-process with naive term-overlap
// ranking. Used by tests and local development.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryIndex initializes an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]Document)}
}

// Upsert stores or replaces a document by ID.
func (m *MemoryIndex) Upsert(ctx context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

// Query scores documents by matched query terms and returns the topK.
func (m *MemoryIndex) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 3
	}
	terms := strings.Fields(strings.ToLower(text))

	m.mu.RLock()
	defer m.mu.RUnlock()
	type scored struct {
		doc   Document
		score int
	}
	hits := make([]scored, 0)
	for _, doc := range m.docs {
		haystack := strings.ToLower(doc.Title + " " + doc.Content)
		score := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{doc: doc, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc.ID < hits[j].doc.ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		out = append(out, Result{Title: hit.doc.Title, Excerpt: truncateRunes(hit.doc.Content, excerptRunes)})
	}
	return out, nil
}

// Get returns a stored document by ID.
func (m *MemoryIndex) Get(id string) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok
}

// Len reports the number of indexed documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
