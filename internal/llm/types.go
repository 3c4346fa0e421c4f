package llm

import (
	"context"
)

// Request is one chat completion request
type Request struct {
	// Task names the caller for interaction logs (e.g., "GenerateSchema")
	Task   string
	System string
	Prompt string
}

// Client defines the interface for LLM interactions
type Client interface {
	// Complete sends the request and returns the model reply
	Complete(ctx context.Context, req Request) (string, error)
}

// completer handles the actual LLM API call
type completer func(ctx context.Context, req Request) (string, error)
