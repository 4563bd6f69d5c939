package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Search is an exact scan; it is meant for tests and small ephemeral corpora.
type VectorStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
	chunkIDs  map[string]struct{}
	closed    bool
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
		chunkIDs:  make(map[string]struct{}),
	}
}

// InsertDocumentWithChunks stores a document and its chunks. All checks run
// before anything is written, so a failed insert leaves the store unchanged.
func (s *VectorStore) InsertDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidMetadata)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	if _, exists := s.documents[doc.ID]; exists {
		return fmt.Errorf("inserting document %s: %w", doc.ID, domain.ErrDuplicateChunk)
	}

	pages := make(map[int]struct{}, len(chunks))
	ids := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if c.DocumentID != "" && c.DocumentID != doc.ID {
			return fmt.Errorf("%w: chunk %d belongs to document %q", domain.ErrInvalidMetadata, i, c.DocumentID)
		}
		if _, dup := pages[c.Page]; dup {
			return fmt.Errorf("inserting chunk for page %d: %w", c.Page, domain.ErrDuplicateChunk)
		}
		pages[c.Page] = struct{}{}
		if c.ID == "" {
			continue
		}
		_, seen := ids[c.ID]
		_, stored := s.chunkIDs[c.ID]
		if seen || stored {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, domain.ErrDuplicateChunk)
		}
		ids[c.ID] = struct{}{}
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	stored := make([]domain.Chunk, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.DocumentID = doc.ID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = doc.CreatedAt
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = c.CreatedAt
		}
		stored[i] = cloneChunk(*c)
		s.chunkIDs[c.ID] = struct{}{}
	}
	slices.SortFunc(stored, func(a, b domain.Chunk) int { return cmp.Compare(a.Page, b.Page) })

	s.documents[doc.ID] = cloneDocument(*doc)
	s.chunks[doc.ID] = stored
	return nil
}

// GetDocument retrieves the owner's document.
func (s *VectorStore) GetDocument(_ context.Context, id, ownerID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.owned(id, ownerID)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns documents matching filter, most recently updated first.
func (s *VectorStore) ListDocuments(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	var docs []domain.Document
	for _, doc := range s.documents {
		switch {
		case filter.OwnerID != "" && doc.OwnerID != filter.OwnerID:
			continue
		case filter.ConversationID != "" && doc.ConversationID != filter.ConversationID:
			continue
		case filter.MIMEType != "" && doc.MIMEType != filter.MIMEType:
			continue
		case filter.ActiveOnly && !doc.Active:
			continue
		case query != "" && !strings.Contains(strings.ToLower(doc.FileName), query):
			continue
		}
		docs = append(docs, cloneDocument(doc))
	}

	slices.SortFunc(docs, func(a, b domain.Document) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(docs) {
			return nil, nil
		}
		docs = docs[filter.Offset:]
	}
	if filter.Limit > 0 && len(docs) > filter.Limit {
		docs = docs[:filter.Limit]
	}
	return docs, nil
}

// ListChunks returns the chunks of the owner's document ordered by page.
func (s *VectorStore) ListChunks(_ context.Context, documentID, ownerID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.owned(documentID, ownerID); err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, 0, len(s.chunks[documentID]))
	for _, c := range s.chunks[documentID] {
		chunks = append(chunks, cloneChunk(c))
	}
	return chunks, nil
}

// CountChunks returns the number of chunks stored for a document.
func (s *VectorStore) CountChunks(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errClosed
	}
	return len(s.chunks[documentID]), nil
}

// UpdateDocument applies update to the owner's document.
func (s *VectorStore) UpdateDocument(
	_ context.Context, id, ownerID string, update domain.DocumentUpdate,
) (*domain.Document, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.owned(id, ownerID)
	if err != nil {
		return nil, err
	}
	update.Apply(&doc)
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc

	out := cloneDocument(doc)
	return &out, nil
}

// DeleteDocument soft or hard deletes the owner's document.
func (s *VectorStore) DeleteDocument(ctx context.Context, id, ownerID string, hard bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.owned(id, ownerID)
	if err != nil {
		return err
	}
	s.delete(doc, hard)
	return nil
}

// DeleteConversation deletes every document of the owner in the conversation.
func (s *VectorStore) DeleteConversation(ctx context.Context, conversationID, ownerID string, hard bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}

	n := 0
	for _, doc := range s.documents {
		if doc.ConversationID != conversationID || doc.OwnerID != ownerID {
			continue
		}
		s.delete(doc, hard)
		n++
	}
	return n, nil
}

// KNNSearch ranks the owner's chunks by cosine similarity to query.
func (s *VectorStore) KNNSearch(
	_ context.Context, query []float32, k int, filter domain.SearchFilter,
) ([]domain.RetrievalHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", domain.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	var hits []domain.RetrievalHit
	for docID, chunks := range s.chunks {
		doc := s.documents[docID]
		switch {
		case doc.OwnerID != filter.OwnerID:
			continue
		case filter.ActiveOnly && !doc.Active:
			continue
		case filter.MIMEType != "" && doc.MIMEType != filter.MIMEType:
			continue
		case filter.ConversationID != "" && doc.ConversationID != filter.ConversationID:
			continue
		}

		for _, c := range chunks {
			if c.Embedding == nil {
				continue
			}
			score, ok := vecmath.Similarity(c.Embedding, query)
			if !ok {
				continue
			}
			hits = append(hits, domain.RetrievalHit{
				ChunkID:    c.ID,
				DocumentID: docID,
				Page:       c.Page,
				Content:    c.Content,
				Score:      score,
				Document:   cloneDocument(doc),
			})
		}
	}

	slices.SortFunc(hits, func(a, b domain.RetrievalHit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.ChunkID, b.ChunkID)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Ping reports whether the store is open.
func (s *VectorStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed. Later calls fail with ErrStorageUnavailable.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var errClosed = fmt.Errorf("%w: memory store is closed", domain.ErrStorageUnavailable)

// owned returns the document if it exists and belongs to ownerID.
// Callers must hold the lock.
func (s *VectorStore) owned(id, ownerID string) (domain.Document, error) {
	if s.closed {
		return domain.Document{}, errClosed
	}
	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return domain.Document{}, domain.ErrNotFound
	}
	return cloneDocument(doc), nil
}

// delete applies a soft or hard delete. Callers must hold the write lock.
func (s *VectorStore) delete(doc domain.Document, hard bool) {
	if !hard {
		doc.Active = false
		doc.UpdatedAt = time.Now().UTC()
		s.documents[doc.ID] = doc
		return
	}
	for _, c := range s.chunks[doc.ID] {
		delete(s.chunkIDs, c.ID)
	}
	delete(s.chunks, doc.ID)
	delete(s.documents, doc.ID)
}

func cloneDocument(d domain.Document) domain.Document {
	d.Metadata = maps.Clone(d.Metadata)
	return d
}

func cloneChunk(c domain.Chunk) domain.Chunk {
	c.Embedding = slices.Clone(c.Embedding)
	return c
}
