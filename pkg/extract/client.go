package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Job status values reported by the extraction service.
const (
	jobSucceeded  = "SUCCEEDED"
	jobFailed     = "FAILED"
	blockTypeLine = "LINE"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultMaxPollAttempts = 120
)

// Extractor turns a stored document into ordered plain text.
type Extractor interface {
	Extract(ctx context.Context, bucket, key string) (string, error)
}

// Config holds extraction client settings.
type Config struct {
	BaseURL string
	APIKey  string
	// PollInterval is the fixed delay between status checks. Defaults to 5s.
	PollInterval time.Duration
	// MaxPollAttempts bounds the polling loop; once exhausted the job fails
	// with ErrTimeout. Defaults to 120 attempts.
	MaxPollAttempts int
}

// Client drives an asynchronous document-analysis job on an external
// OCR/extraction service: submit, poll to a terminal status on a fixed
// interval, then page through the result blocks with a continuation token.
type Client struct {
	baseURL         string
	apiKey          string
	pollInterval    time.Duration
	maxPollAttempts int
	httpClient      *http.Client
}

// NewClient constructs an extraction client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("extraction base URL required")
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxPollAttempts := cfg.MaxPollAttempts
	if maxPollAttempts <= 0 {
		maxPollAttempts = defaultMaxPollAttempts
	}
	return &Client{
		baseURL:         baseURL,
		apiKey:          strings.TrimSpace(cfg.APIKey),
		pollInterval:    pollInterval,
		maxPollAttempts: maxPollAttempts,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Extract runs the full extraction protocol for one stored object and returns
// the concatenated line text in page-then-block order, joined by newline.
func (c *Client) Extract(ctx context.Context, bucket, key string) (string, error) {
	jobID, err := c.Submit(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	slog.Info("extraction job submitted", "job_id", jobID, "key", key)

	if err := c.waitForJob(ctx, jobID); err != nil {
		return "", err
	}

	lines := make([]string, 0)
	token := ""
	for {
		page, err := c.getAnalysis(ctx, jobID, token)
		if err != nil {
			return "", err
		}
		for _, block := range page.Blocks {
			// tables, key/value forms and other unit types are ignored here
			if block.BlockType == blockTypeLine {
				lines = append(lines, block.Text)
			}
		}
		token = page.NextToken
		if token == "" {
			break
		}
	}
	slog.Info("extraction complete", "job_id", jobID, "lines", len(lines))
	return strings.Join(lines, "\n"), nil
}

// Submit starts an asynchronous analysis job for the object and returns its
// job ID.
func (c *Client) Submit(ctx context.Context, bucket, key string) (string, error) {
	reqBody := submitRequest{Bucket: bucket, Key: key}
	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/analyses", reqBody, &resp); err != nil {
		return "", fmt.Errorf("%w: submit: %v", ErrService, err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("%w: submit returned no job id", ErrService)
	}
	return resp.JobID, nil
}

// waitForJob polls the job on a fixed interval until it reaches a terminal
// status or the attempt limit is exhausted.
func (c *Client) waitForJob(ctx context.Context, jobID string) error {
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		page, err := c.getAnalysis(ctx, jobID, "")
		if err != nil {
			return err
		}
		switch page.Status {
		case jobSucceeded:
			return nil
		case jobFailed:
			reason := page.StatusMessage
			if reason == "" {
				reason = "unknown error"
			}
			return fmt.Errorf("%w: job failed: %s", ErrService, reason)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrService, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
	return fmt.Errorf("%w: job %s not terminal after %d attempts", ErrTimeout, jobID, c.maxPollAttempts)
}

func (c *Client) getAnalysis(ctx context.Context, jobID, token string) (analysisResponse, error) {
	path := "/analyses/" + url.PathEscape(jobID)
	if token != "" {
		path += "?next=" + url.QueryEscape(token)
	}
	var resp analysisResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return analysisResponse{}, fmt.Errorf("%w: poll: %v", ErrService, err)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Extraction service request/response types.

type submitRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

type analysisResponse struct {
	Status        string  `json:"status"`
	StatusMessage string  `json:"statusMessage,omitempty"`
	Blocks        []Block `json:"blocks"`
	NextToken     string  `json:"nextToken,omitempty"`
}

// Block is one text unit in an analysis result page.
type Block struct {
	BlockType string `json:"blockType"`
	Text      string `json:"text"`
}
