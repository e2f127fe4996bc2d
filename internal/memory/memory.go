// Package memory defines the external memory service contract the planner
// and responder nodes consult for relevant context from prior turns.
package memory

import (
	"context"

	"github.com/orbitalhq/orbital/pkg/models"
)

// Service recalls memories relevant to a query. A nil Service is valid —
// nodes that depend on it treat that as "no memory configured" rather than
// failing.
type Service interface {
	Recall(ctx context.Context, query string, topK int) ([]models.MemoryItem, error)
}
