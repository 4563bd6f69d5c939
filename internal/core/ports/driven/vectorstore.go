package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// VectorStore persists documents with their chunks and answers
// nearest-neighbour queries over chunk embeddings.
//
// Every method acquires its own connection or transaction and releases it
// before returning. Owner-scoped methods enforce ownership in the storage
// predicate; a document owned by someone else is reported as
// domain.ErrNotFound.
type VectorStore interface {
	// InsertDocumentWithChunks stores a document and all of its chunks
	// atomically. A repeated document ID or (document, page) pair fails
	// with domain.ErrDuplicateChunk and leaves nothing behind.
	InsertDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// GetDocument retrieves a document owned by ownerID.
	GetDocument(ctx context.Context, id, ownerID string) (*domain.Document, error)

	// ListDocuments returns documents matching the filter, most recently
	// updated first.
	ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)

	// ListChunks returns a document's chunks ordered by page.
	ListChunks(ctx context.Context, documentID, ownerID string) ([]domain.Chunk, error)

	// CountChunks returns the number of stored chunks for a document.
	CountChunks(ctx context.Context, documentID string) (int, error)

	// UpdateDocument applies an enumerated update and returns the result.
	UpdateDocument(ctx context.Context, id, ownerID string, update domain.DocumentUpdate) (*domain.Document, error)

	// DeleteDocument soft deletes (hard=false) or removes the document and
	// its chunks (hard=true).
	DeleteDocument(ctx context.Context, id, ownerID string, hard bool) error

	// DeleteConversation applies DeleteDocument to every document of the
	// owner in the conversation and returns how many were affected.
	DeleteConversation(ctx context.Context, conversationID, ownerID string, hard bool) (int, error)

	// KNNSearch returns up to k chunks ranked by cosine similarity to query.
	// Chunks without an embedding are never returned.
	KNNSearch(ctx context.Context, query []float32, k int, filter domain.SearchFilter) ([]domain.RetrievalHit, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
