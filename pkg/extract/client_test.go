package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c, err := NewClient(Config{
		BaseURL:         srv.URL,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 5,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv.Close
}

func TestExtractJoinsLineBlocksAcrossPages(t *testing.T) {
	pages := map[string]analysisResponse{
		"": {
			Status: jobSucceeded,
			Blocks: []Block{
				{BlockType: "PAGE", Text: ""},
				{BlockType: "LINE", Text: "first line"},
				{BlockType: "TABLE", Text: "ignored table"},
				{BlockType: "LINE", Text: "second line"},
			},
			NextToken: "p2",
		},
		"p2": {
			Status: jobSucceeded,
			Blocks: []Block{
				{BlockType: "KEY_VALUE_SET", Text: "ignored form"},
				{BlockType: "LINE", Text: "third line"},
			},
			NextToken: "p3",
		},
		"p3": {
			Status: jobSucceeded,
			Blocks: []Block{
				{BlockType: "LINE", Text: "fourth line"},
			},
		},
	}
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(submitResponse{JobID: "job-1"})
			return
		}
		page, ok := pages[r.URL.Query().Get("next")]
		if !ok {
			t.Errorf("unexpected continuation token %q", r.URL.Query().Get("next"))
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer done()

	text, err := c.Extract(context.Background(), "kb", "documents/a.pdf")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "first line\nsecond line\nthird line\nfourth line"
	if text != want {
		t.Fatalf("extract = %q, want %q", text, want)
	}
}

func TestExtractPollsUntilSucceeded(t *testing.T) {
	polls := 0
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(submitResponse{JobID: "job-1"})
			return
		}
		polls++
		if polls < 3 {
			_ = json.NewEncoder(w).Encode(analysisResponse{Status: "IN_PROGRESS"})
			return
		}
		_ = json.NewEncoder(w).Encode(analysisResponse{
			Status: jobSucceeded,
			Blocks: []Block{{BlockType: "LINE", Text: "done"}},
		})
	}))
	defer done()

	text, err := c.Extract(context.Background(), "kb", "documents/a.pdf")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "done" {
		t.Fatalf("extract = %q", text)
	}
	if polls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", polls)
	}
}

func TestExtractReportsServiceFailureReason(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(submitResponse{JobID: "job-1"})
			return
		}
		_ = json.NewEncoder(w).Encode(analysisResponse{Status: jobFailed, StatusMessage: "document too large"})
	}))
	defer done()

	_, err := c.Extract(context.Background(), "kb", "documents/a.pdf")
	if !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
	if !strings.Contains(err.Error(), "document too large") {
		t.Fatalf("error missing service reason: %v", err)
	}
}

func TestExtractTimesOutAfterMaxAttempts(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(submitResponse{JobID: "job-1"})
			return
		}
		_ = json.NewEncoder(w).Encode(analysisResponse{Status: "IN_PROGRESS"})
	}))
	defer done()

	_, err := c.Extract(context.Background(), "kb", "documents/a.pdf")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
