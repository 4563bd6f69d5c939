package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService runs the ingestion pipeline: validate, normalise, chunk,
// embed, then persist the document and its chunks in one transaction.
type IngestService struct {
	store       driven.VectorStore
	embedder    driven.Embedder
	normalisers driven.NormaliserRegistry
	chunker     driven.Chunker
	policy      domain.PartialPolicy
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithPartialPolicy sets what happens when some chunks fail to embed.
// Unknown policies are ignored and the default (abort) stays in place.
func WithPartialPolicy(p domain.PartialPolicy) IngestOption {
	return func(s *IngestService) {
		if p.IsValid() {
			s.policy = p
		}
	}
}

// NewIngestService creates a new ingestion service.
func NewIngestService(
	store driven.VectorStore,
	embedder driven.Embedder,
	normalisers driven.NormaliserRegistry,
	chunker driven.Chunker,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		store:       store,
		embedder:    embedder,
		normalisers: normalisers,
		chunker:     chunker,
		policy:      domain.PartialPolicyAbort,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the partial policy in effect.
func (s *IngestService) Policy() domain.PartialPolicy {
	return s.policy
}

// Ingest stores content as a new document owned by meta.OwnerID.
// Nothing is written unless every step up to the final commit succeeds.
func (s *IngestService) Ingest(
	ctx context.Context, content []byte, meta domain.IngestMetadata,
) (*domain.IngestResult, error) {
	logger.Section("Ingest")
	start := time.Now()

	// 1. Validate
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	docID := meta.DocumentID
	if docID == "" {
		docID = uuid.NewString()
	} else if _, err := uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("%w: document id %q is not a UUID", domain.ErrInvalidMetadata, docID)
	}
	fileName := strings.TrimSpace(meta.FileName)
	if fileName == "" {
		fileName = nameFromURI(meta.URI)
	}

	// 2. Normalise
	normaliser, err := s.normalisers.Get(meta.MIMEType)
	if err != nil {
		return nil, err
	}
	text, err := normaliser.Normalise(ctx, &domain.RawDocument{
		FileName: fileName,
		URI:      meta.URI,
		MIMEType: meta.MIMEType,
		Content:  content,
		Metadata: meta.Metadata,
	})
	if err != nil {
		if errors.Is(err, domain.ErrChunking) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: normalising %s: %w", domain.ErrChunking, meta.MIMEType, err)
	}
	logger.Debug("Normalised %d bytes to %d characters in %v", len(content), len(text), time.Since(start))

	// 3. Chunk
	var spans []domain.Span
	if strings.TrimSpace(text) != "" {
		for span := range s.chunker.Spans(text) {
			spans = append(spans, span)
		}
	}
	if len(spans) == 0 {
		return nil, fmt.Errorf("%w: no extractable text", domain.ErrChunking)
	}

	// 4. Embed
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
	}
	embedStart := time.Now()
	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = span.Text
	}
	results := s.embedder.EmbedMany(ctx, texts)
	logger.Debug("Embedded %d chunks in %v", len(results), time.Since(embedStart))

	// 5. Nothing is written once the caller has given up.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 6. Apply the partial policy
	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(spans))
	var missing []int
	var failures []error
	for i, r := range results {
		if r.Err != nil {
			missing = append(missing, spans[i].Page)
			failures = append(failures, fmt.Errorf("page %d: %w", spans[i].Page, r.Err))
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Page:       spans[i].Page,
			Content:    spans[i].Text,
			Embedding:  r.Vector,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if len(missing) > 0 {
		if s.policy == domain.PartialPolicyAbort || len(chunks) == 0 {
			logger.Warn("Ingest of %s aborted: %d of %d chunks failed to embed", fileName, len(missing), len(spans))
			return nil, unavailable(missing, len(spans), failures)
		}
		logger.Warn("Ingest of %s is partial: pages %v have no embedding", fileName, missing)
	}

	metadata := maps.Clone(meta.Metadata)
	if metadata == nil {
		metadata = make(map[string]any)
	}
	metadata[domain.MetadataChunkOverlap] = spanOverlap(spans)
	if len(missing) > 0 {
		metadata[domain.MetadataMissingPages] = missing
	}

	doc := &domain.Document{
		ID:             docID,
		FileName:       fileName,
		MIMEType:       meta.MIMEType,
		URI:            meta.URI,
		OwnerID:        meta.OwnerID,
		ConversationID: meta.ConversationID,
		Active:         true,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// 7. Persist
	if err := s.store.InsertDocumentWithChunks(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("persisting document %s: %w", docID, err)
	}

	logger.Info("Ingested %s as %s (%d chunks) in %v", fileName, docID, len(chunks), time.Since(start))
	return &domain.IngestResult{
		Document:     *doc,
		ChunkCount:   len(chunks),
		MissingPages: missing,
	}, nil
}

// unavailable reports failed pages as ErrEmbeddingUnavailable.
func unavailable(missing []int, total int, failures []error) error {
	err := fmt.Errorf("%w: %d of %d chunks failed (pages %v)",
		domain.ErrEmbeddingUnavailable, len(missing), total, missing)
	return errors.Join(append([]error{err}, failures...)...)
}

// spanOverlap returns how many runes adjacent spans share.
func spanOverlap(spans []domain.Span) int {
	if len(spans) < 2 {
		return 0
	}
	return max(spans[0].End-spans[1].Start, 0)
}

// nameFromURI derives a display name from the last path element of uri.
func nameFromURI(uri string) string {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(strings.TrimRight(p, "/"))
	if name == "." || name == "/" || name == "" {
		return uri
	}
	return name
}
