package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sampling parameters for answer generation.
const (
	generationMaxTokens   = 1000
	generationTemperature = 0.3
	generationTopP        = 0.1
)

const messagesAPIVersion = "2023-06-01"

// MessagesGenerator calls a Claude-style /v1/messages endpoint. The system
// preamble travels in the request's system field, separate from the
// role-tagged message list.
type MessagesGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewMessagesGenerator builds a messages-API ChatGenerator.
// apiKey can be empty for gateways that authenticate elsewhere.
func NewMessagesGenerator(baseURL, apiKey, model string) *MessagesGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &MessagesGenerator{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateChat implements ChatGenerator using the messages API. Only the first
// text segment of the first content block of the response is consumed.
func (g *MessagesGenerator) GenerateChat(ctx context.Context, system string, turns []Turn) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("%w: generation model required", ErrGeneration)
	}
	reqBody := messagesRequest{
		Model:       g.model,
		System:      system,
		Messages:    turns,
		MaxTokens:   generationMaxTokens,
		Temperature: generationTemperature,
		TopP:        generationTopP,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	url := g.baseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", messagesAPIVersion)
	if g.apiKey != "" {
		req.Header.Set("x-api-key", g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp messagesErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("%w: %s", ErrGeneration, errResp.Error.Message)
		}
		return "", fmt.Errorf("%w: %s", ErrGeneration, resp.Status)
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrGeneration, err)
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("%w: empty response content", ErrGeneration)
	}
	text := strings.TrimSpace(msgResp.Content[0].Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response content", ErrGeneration)
	}
	return text, nil
}

// Messages API request/response types.

type messagesRequest struct {
	Model       string  `json:"model"`
	System      string  `json:"system"`
	Messages    []Turn  `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type messagesErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
