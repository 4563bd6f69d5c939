package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

// --- Mock implementations ---

// mockEmbedder implements driven.Embedder. Vectors are derived from the
// text so identical texts embed identically.
type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	// failOn marks texts whose embedding fails.
	failOn func(text string) bool
	// embedErr is returned by Embed when set.
	embedErr error
	// onEmbedMany runs before EmbedMany returns.
	onEmbedMany func()
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := []float32{1, 0, 0}
	for i, r := range text {
		v[i%3] += float32(r%7) / 10
	}
	return v
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedMany(_ context.Context, texts []string) []driven.EmbedResult {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	out := make([]driven.EmbedResult, len(texts))
	for i, text := range texts {
		if m.failOn != nil && m.failOn(text) {
			out[i].Err = fmt.Errorf("%w: provider refused", domain.ErrEmbeddingUnavailable)
			continue
		}
		out[i].Vector = m.vector(text)
	}
	if m.onEmbedMany != nil {
		m.onEmbedMany()
	}
	return out
}

func (m *mockEmbedder) Dimensions() int   { return 3 }
func (m *mockEmbedder) ModelName() string { return "mock" }

// failingStore wraps a VectorStore and fails the selected operation.
type failingStore struct {
	driven.VectorStore
	insertErr error
	searchErr error
}

func (f *failingStore) InsertDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.VectorStore.InsertDocumentWithChunks(ctx, doc, chunks)
}

func (f *failingStore) KNNSearch(
	ctx context.Context, q []float32, k int, filter domain.SearchFilter,
) ([]domain.RetrievalHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.VectorStore.KNNSearch(ctx, q, k, filter)
}

var errDiskGone = errors.New("disk gone")

// --- Fixture ---

type fixture struct {
	store     *memory.VectorStore
	embedder  *mockEmbedder
	ingest    *IngestService
	lifecycle *LifecycleService
	retrieval *RetrievalService
}

func newFixture(t *testing.T, opts ...IngestOption) *fixture {
	t.Helper()

	c, err := chunker.New(chunker.WithChunkSize(500), chunker.WithOverlap(100))
	require.NoError(t, err)

	store := memory.NewVectorStore()
	embedder := &mockEmbedder{}
	return &fixture{
		store:     store,
		embedder:  embedder,
		ingest:    NewIngestService(store, embedder, normalisers.Default(), c, opts...),
		lifecycle: NewLifecycleService(store),
		retrieval: NewRetrievalService(store, embedder),
	}
}

func meta(owner, conversation string) domain.IngestMetadata {
	return domain.IngestMetadata{
		FileName:       "notes.txt",
		MIMEType:       "text/plain",
		URI:            "file:///home/alice/notes.txt",
		OwnerID:        owner,
		ConversationID: conversation,
	}
}

// text1200 is 1200 runes that split into pages [0,500), [400,900), [800,1200).
func text1200() string {
	var b strings.Builder
	for i := 0; i < 1200; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	return b.String()
}

func (f *fixture) mustIngest(t *testing.T, content string, m domain.IngestMetadata) *domain.IngestResult {
	t.Helper()
	res, err := f.ingest.Ingest(context.Background(), []byte(content), m)
	require.NoError(t, err)
	return res
}
