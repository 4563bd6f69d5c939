package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

// stubEmbedder derives a small vector from the characters of the text.
type stubEmbedder struct{}

func (stubEmbedder) vector(text string) []float32 {
	v := []float32{1, 0, 0}
	for i, r := range text {
		v[i%3] += float32(r%5) / 10
	}
	return v
}

func (e stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e stubEmbedder) EmbedMany(_ context.Context, texts []string) []driven.EmbedResult {
	out := make([]driven.EmbedResult, len(texts))
	for i, text := range texts {
		out[i].Vector = e.vector(text)
	}
	return out
}

func (stubEmbedder) Dimensions() int   { return 3 }
func (stubEmbedder) ModelName() string { return "stub" }

// mockRetrievalService fails every call with err.
type mockRetrievalService struct {
	err error
}

func (m *mockRetrievalService) Search(context.Context, domain.SearchRequest) ([]domain.RetrievalHit, error) {
	return nil, m.err
}

func (m *mockRetrievalService) Get(context.Context, string, string) (*domain.DocumentDetails, error) {
	return nil, m.err
}

func (m *mockRetrievalService) List(context.Context, domain.DocumentFilter) ([]domain.Document, error) {
	return nil, m.err
}

func (m *mockRetrievalService) Content(context.Context, string, string) (string, error) {
	return "", m.err
}

// newTestServer wires real services over the in-memory store.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	c, err := chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(20))
	require.NoError(t, err)

	store := memory.NewVectorStore()
	embedder := stubEmbedder{}
	server, err := NewServer(&Ports{
		Retrieval: services.NewRetrievalService(store, embedder),
		Ingest:    services.NewIngestService(store, embedder, normalisers.Default(), c),
		Lifecycle: services.NewLifecycleService(store),
	})
	require.NoError(t, err)
	return server
}

// ingestText stores text through the ingest_text handler.
func ingestText(t *testing.T, s *Server, owner, conversation, name, text string) string {
	t.Helper()
	_, out, err := s.handleIngestText(context.Background(), nil, IngestTextInput{
		OwnerID:        owner,
		ConversationID: conversation,
		FileName:       name,
		Text:           text,
	})
	require.NoError(t, err)
	return out.DocumentID
}
