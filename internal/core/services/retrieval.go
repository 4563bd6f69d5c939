package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService answers similarity queries and document reads.
type RetrievalService struct {
	store    driven.VectorStore
	embedder driven.Embedder
	defaultK int
}

// RetrievalOption configures a RetrievalService.
type RetrievalOption func(*RetrievalService)

// WithDefaultK sets the result count used when a request leaves K unset.
func WithDefaultK(k int) RetrievalOption {
	return func(s *RetrievalService) {
		if k > 0 && k <= domain.MaxK {
			s.defaultK = k
		}
	}
}

// NewRetrievalService creates a new retrieval service.
// embedder may be nil, in which case only vector queries are accepted.
func NewRetrievalService(
	store driven.VectorStore, embedder driven.Embedder, opts ...RetrievalOption,
) *RetrievalService {
	s := &RetrievalService{
		store:    store,
		embedder: embedder,
		defaultK: domain.DefaultK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to K chunks of the owner's documents ranked by cosine
// similarity to the query. An empty result is an empty slice.
func (s *RetrievalService) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievalHit, error) {
	logger.Section("Search")
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	k := req.K
	if k <= 0 {
		k = s.defaultK
	}

	vector := req.Vector
	if vector == nil {
		if s.embedder == nil {
			return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
		}
		v, err := s.embedder.Embed(ctx, req.Text)
		if err != nil {
			if !errors.Is(err, domain.ErrEmbeddingUnavailable) && ctx.Err() == nil {
				err = fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
			}
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		vector = v
		logger.Debug("Embedded query in %v", time.Since(start))
	}

	hits, err := s.store.KNNSearch(ctx, vector, k, req.Filter())
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	if hits == nil {
		hits = []domain.RetrievalHit{}
	}

	logger.Debug("Search returned %d of k=%d hits in %v", len(hits), k, time.Since(start))
	return hits, nil
}

// Get returns a document with its chunk count and any pages dropped at ingest.
func (s *RetrievalService) Get(ctx context.Context, id, ownerID string) (*domain.DocumentDetails, error) {
	if err := requireIDs(id, ownerID); err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountChunks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.DocumentDetails{
		Document:     *doc,
		ChunkCount:   n,
		MissingPages: domain.MetadataInts(doc.Metadata, domain.MetadataMissingPages),
	}, nil
}

// List returns the owner's documents matching filter.
func (s *RetrievalService) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	if strings.TrimSpace(filter.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidInput)
	}
	docs, err := s.store.ListDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}

// Content reassembles a document's text from its chunks. The overlap between
// consecutive pages is removed; a gap left by a missing page is marked with a
// blank line.
func (s *RetrievalService) Content(ctx context.Context, id, ownerID string) (string, error) {
	if err := requireIDs(id, ownerID); err != nil {
		return "", err
	}
	doc, err := s.store.GetDocument(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	chunks, err := s.store.ListChunks(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	overlap, _ := domain.MetadataInt(doc.Metadata, domain.MetadataChunkOverlap)
	return joinChunks(chunks, overlap), nil
}

// joinChunks concatenates page-ordered chunks, dropping the first overlap
// runes of each chunk that directly follows its predecessor.
func joinChunks(chunks []domain.Chunk, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		text := c.Content
		if i > 0 {
			if c.Page == chunks[i-1].Page+1 {
				text = dropRunes(text, overlap)
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(text)
	}
	return b.String()
}

func dropRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}
