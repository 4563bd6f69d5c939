package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentLoader fetches raw documents from an upstream source.
// The core never fetches files itself; loaders feed the ingestion pipeline.
type DocumentLoader interface {
	// Load fetches the document addressed by ref (a path, link or ID).
	Load(ctx context.Context, ref string) (*domain.RawDocument, error)
}
