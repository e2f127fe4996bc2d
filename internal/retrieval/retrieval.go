// Package retrieval defines the external RAG retrieval contract used by
// retrieval-backed tools (e.g. a knowledge-base search tool).
package retrieval

import (
	"context"

	"github.com/orbitalhq/orbital/pkg/models"
)

// Source retrieves the top-k chunks relevant to query from a named
// collection (a knowledge base id, an index name, ...).
type Source interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievedChunk, error)
}
