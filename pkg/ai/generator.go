package ai

import (
	"context"
	"errors"
)

// ErrGeneration marks failures of the language-model inference endpoint,
// including malformed or empty responses.
var ErrGeneration = errors.New("generation service error")

// Turn is one role-tagged message in a generation request.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatGenerator produces an assistant reply from a system preamble and the
// full role-tagged conversation history. All providers implement this
// interface.
type ChatGenerator interface {
	GenerateChat(ctx context.Context, system string, turns []Turn) (string, error)
}
