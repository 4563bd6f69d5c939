package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestIngest_ThreePages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := text1200()

	res := f.mustIngest(t, text, meta("alice", "conv-1"))
	assert.Equal(t, 3, res.ChunkCount)
	assert.Empty(t, res.MissingPages)
	assert.True(t, res.Document.Active)
	assert.Equal(t, "notes.txt", res.Document.FileName)
	_, err := uuid.Parse(res.Document.ID)
	assert.NoError(t, err)

	chunks, err := f.store.ListChunks(ctx, res.Document.ID, "alice")
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	want := []struct{ start, end int }{{0, 500}, {400, 900}, {800, 1200}}
	for i, c := range chunks {
		assert.Equal(t, i, c.Page)
		assert.Equal(t, text[want[i].start:want[i].end], c.Content)
		assert.Len(t, c.Embedding, 3)
	}
}

func TestIngest_ValidationHasNoSideEffects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.IngestMetadata)
	}{
		{"missing owner", func(m *domain.IngestMetadata) { m.OwnerID = "" }},
		{"blank conversation", func(m *domain.IngestMetadata) { m.ConversationID = " " }},
		{"missing mime", func(m *domain.IngestMetadata) { m.MIMEType = "" }},
		{"missing uri", func(m *domain.IngestMetadata) { m.URI = "" }},
		{"document id not a uuid", func(m *domain.IngestMetadata) { m.DocumentID = "doc-1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			m := meta("alice", "conv")
			tt.mutate(&m)

			_, err := f.ingest.Ingest(context.Background(), []byte("hello"), m)
			require.ErrorIs(t, err, domain.ErrInvalidMetadata)
			assert.Zero(t, f.embedder.calls, "embedder must not be called")

			docs, err := f.store.ListDocuments(context.Background(), domain.DocumentFilter{})
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestIngest_ChunkingErrors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		mime    string
	}{
		{"empty content", nil, "text/plain"},
		{"whitespace only", []byte(" \n\t "), "text/plain"},
		{"invalid utf-8", []byte{0xff, 0xfe, 0xfd}, "text/plain"},
		{"unsupported mime", []byte("%PDF-1.7"), "application/x-unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			m := meta("alice", "conv")
			m.MIMEType = tt.mime

			_, err := f.ingest.Ingest(context.Background(), tt.content, m)
			require.ErrorIs(t, err, domain.ErrChunking)
			assert.Zero(t, f.embedder.calls)

			docs, err := f.store.ListDocuments(context.Background(), domain.DocumentFilter{OwnerID: "alice"})
			require.NoError(t, err)
			assert.Empty(t, docs, "a document without text is never stored")
		})
	}
}

func TestIngest_AbortPolicyPersistsNothing(t *testing.T) {
	f := newFixture(t)
	text := text1200()
	failing := []rune(text)[400:900]
	f.embedder.failOn = func(s string) bool { return s == string(failing) }

	_, err := f.ingest.Ingest(context.Background(), []byte(text), meta("alice", "conv"))
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "pages [1]")

	docs, err := f.store.ListDocuments(context.Background(), domain.DocumentFilter{OwnerID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngest_PartialPolicy(t *testing.T) {
	f := newFixture(t, WithPartialPolicy(domain.PartialPolicyPersist))
	assert.Equal(t, domain.PartialPolicyPersist, f.ingest.Policy())
	ctx := context.Background()

	text := text1200()
	failing := string([]rune(text)[400:900])
	f.embedder.failOn = func(s string) bool { return s == failing }

	res, err := f.ingest.Ingest(ctx, []byte(text), meta("alice", "conv"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChunkCount)
	assert.Equal(t, []int{1}, res.MissingPages)

	details, err := f.retrieval.Get(ctx, res.Document.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, details.ChunkCount)
	assert.Equal(t, []int{1}, details.MissingPages)

	chunks, err := f.store.ListChunks(ctx, res.Document.ID, "alice")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Page)
	assert.Equal(t, 2, chunks[1].Page)
}

func TestIngest_PartialPolicyAllFailed(t *testing.T) {
	f := newFixture(t, WithPartialPolicy(domain.PartialPolicyPersist))
	f.embedder.failOn = func(string) bool { return true }

	_, err := f.ingest.Ingest(context.Background(), []byte("short text"), meta("alice", "conv"))
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	docs, err := f.store.ListDocuments(context.Background(), domain.DocumentFilter{OwnerID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngest_InvalidPolicyKeepsAbort(t *testing.T) {
	f := newFixture(t, WithPartialPolicy("sometimes"))
	assert.Equal(t, domain.PartialPolicyAbort, f.ingest.Policy())
}

func TestIngest_DuplicateDocumentID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := meta("alice", "conv")
	m.DocumentID = uuid.NewString()
	first := f.mustIngest(t, "first version", m)

	_, err := f.ingest.Ingest(ctx, []byte("second version"), m)
	require.ErrorIs(t, err, domain.ErrDuplicateChunk)

	content, err := f.retrieval.Content(ctx, first.Document.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "first version", content)
}

func TestIngest_StorageFailure(t *testing.T) {
	f := newFixture(t)
	store := &failingStore{VectorStore: f.store, insertErr: fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, errDiskGone)}
	svc := NewIngestService(store, f.embedder, f.ingest.normalisers, f.ingest.chunker)

	_, err := svc.Ingest(context.Background(), []byte("hello"), meta("alice", "conv"))
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorIs(t, err, errDiskGone)
}

func TestIngest_NoEmbedder(t *testing.T) {
	f := newFixture(t)
	svc := NewIngestService(f.store, nil, f.ingest.normalisers, f.ingest.chunker)

	_, err := svc.Ingest(context.Background(), []byte("hello"), meta("alice", "conv"))
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIngest_CancelledBeforePersist(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.embedder.onEmbedMany = cancel

	_, err := f.ingest.Ingest(ctx, []byte("hello world"), meta("alice", "conv"))
	require.ErrorIs(t, err, context.Canceled)

	docs, err := f.store.ListDocuments(context.Background(), domain.DocumentFilter{OwnerID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngest_MetadataAndDefaults(t *testing.T) {
	f := newFixture(t)

	m := meta("alice", "conv")
	m.FileName = ""
	m.URI = "https://drive.google.com/files/Quarterly%20Report.txt?x=1"
	m.Metadata = map[string]any{"drive_id": "abc"}

	res := f.mustIngest(t, "quarterly numbers", m)
	assert.Equal(t, "Quarterly Report.txt", res.Document.FileName)
	assert.Equal(t, "abc", res.Document.Metadata["drive_id"])
	assert.Equal(t, 0, res.Document.Metadata[domain.MetadataChunkOverlap])
	assert.NotContains(t, res.Document.Metadata, domain.MetadataMissingPages)
	assert.NotContains(t, m.Metadata, domain.MetadataChunkOverlap, "caller metadata is not mutated")
}

func TestIngest_Markdown(t *testing.T) {
	f := newFixture(t)
	m := meta("alice", "conv")
	m.MIMEType = "text/markdown; charset=utf-8"

	res := f.mustIngest(t, "# Title\n\nSome **bold** text.", m)
	content, err := f.retrieval.Content(context.Background(), res.Document.ID, "alice")
	require.NoError(t, err)
	assert.Contains(t, content, "Title")
	assert.NotContains(t, content, "**")
}

func TestNameFromURI(t *testing.T) {
	tests := map[string]string{
		"file:///home/alice/notes.txt":    "notes.txt",
		"/tmp/report.pdf":                 "report.pdf",
		"https://example.com/docs/guide/": "guide",
		"stdin":                           "stdin",
		"https://example.com":             "example.com",
	}
	for uri, want := range tests {
		assert.Equal(t, want, nameFromURI(uri), uri)
	}
}

func TestSpanOverlap(t *testing.T) {
	assert.Zero(t, spanOverlap(nil))
	assert.Zero(t, spanOverlap([]domain.Span{{End: 10}}))
	assert.Equal(t, 100, spanOverlap([]domain.Span{{Start: 0, End: 500}, {Start: 400, End: 900}}))
}

func TestIngest_ContentRoundTrip(t *testing.T) {
	f := newFixture(t)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)

	res := f.mustIngest(t, text, meta("alice", "conv"))
	require.Greater(t, res.ChunkCount, 1)

	content, err := f.retrieval.Content(context.Background(), res.Document.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, text, content)
}
