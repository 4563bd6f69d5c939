package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// IngestService turns raw documents into stored, searchable chunks.
type IngestService interface {
	// Ingest validates, chunks, embeds and persists one document.
	// It either fully succeeds or leaves no trace.
	Ingest(ctx context.Context, content []byte, meta domain.IngestMetadata) (*domain.IngestResult, error)
}
