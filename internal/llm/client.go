// Package llm defines the provider-agnostic completion contract the graph
// nodes call through, plus a concrete Anthropic-backed implementation.
package llm

import (
	"context"

	"github.com/orbitalhq/orbital/pkg/models"
)

// Request is one completion call.
type Request struct {
	Model     string
	System    string
	Messages  []models.Message
	MaxTokens int
}

// Completion is the provider-agnostic result of a Request.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client is the interface every graph node depends on. Nodes that cannot
// obtain a Client (none configured) short-circuit to a best-effort direct
// response rather than failing the run.
type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}
