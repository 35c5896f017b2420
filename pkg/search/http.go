package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPIndex is an Index client for the ingest service's search endpoints. The
// chat service uses it so a single process owns the on-disk index.
type HTTPIndex struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPIndex builds a client against the given base URL.
func NewHTTPIndex(baseURL string) (*HTTPIndex, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("search service URL required")
	}
	return &HTTPIndex{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Upsert stores a document through the search service.
func (h *HTTPIndex) Upsert(ctx context.Context, doc Document) error {
	return h.doJSON(ctx, "/search/documents", doc, nil)
}

// Query returns ranked results from the search service.
func (h *HTTPIndex) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	req := queryRequest{Text: text, TopK: topK}
	var resp queryResponse
	if err := h.doJSON(ctx, "/search/query", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (h *HTTPIndex) doJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search service request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("search service error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Search service request/response types.

type queryRequest struct {
	Text string `json:"text"`
	TopK int    `json:"topK"`
}

type queryResponse struct {
	Results []Result `json:"results"`
}
