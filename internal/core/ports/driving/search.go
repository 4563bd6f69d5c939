package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RetrievalService provides similarity search and document reads.
type RetrievalService interface {
	// Search returns hits ranked by descending similarity.
	// An empty slice is a valid result.
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievalHit, error)

	// Get returns a document with its chunk count.
	Get(ctx context.Context, id, ownerID string) (*domain.DocumentDetails, error)

	// List returns documents matching the filter.
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)

	// Content returns the document text reassembled from its chunks.
	Content(ctx context.Context, id, ownerID string) (string, error)
}
