package search

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

const excerptRunes = 300

// BleveIndex implements Index with a local Bleve index on disk. Embeddings
// are accepted but not used for ranking; this backend is keyword-only.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Upsert indexes a document by ID, replacing any previous version.
func (b *BleveIndex) Upsert(ctx context.Context, doc Document) error {
	entry := map[string]any{
		"title":   doc.Title,
		"content": doc.Content,
	}
	if err := b.index.Index(doc.ID, entry); err != nil {
		return fmt.Errorf("bleve index: %w", err)
	}
	return nil
}

// Query runs a match query and returns up to topK ranked results with
// highlighted excerpts.
func (b *BleveIndex) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 3
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(text))
	req.Size = topK
	req.Fields = []string{"title", "content"}

	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		title, _ := hit.Fields["title"].(string)
		content, _ := hit.Fields["content"].(string)
		out = append(out, Result{Title: title, Excerpt: truncateRunes(content, excerptRunes)})
	}
	return out, nil
}

// Close releases the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
