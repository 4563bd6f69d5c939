package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, code, te.Code)
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t)
	id := ingestText(t, server, "alice", "conv-1", "owls.txt", "owls hunt at night")
	ingestText(t, server, "bob", "conv-1", "bob.txt", "owls hunt at night")

	t.Run("returns the owner's hits", func(t *testing.T) {
		_, out, err := server.handleSearch(ctx, nil, SearchInput{OwnerID: "alice", Query: "owls hunt at night"})
		require.NoError(t, err)
		require.Equal(t, 1, out.Count)
		assert.Equal(t, id, out.Results[0].DocumentID)
		assert.Equal(t, "owls.txt", out.Results[0].FileName)
		assert.Equal(t, "conv-1", out.Results[0].ConversationID)
		assert.Equal(t, "owls hunt at night", out.Results[0].Content)
		assert.InDelta(t, 1.0, out.Results[0].Score, 1e-6)
	})

	t.Run("unknown owner gets an empty list", func(t *testing.T) {
		_, out, err := server.handleSearch(ctx, nil, SearchInput{OwnerID: "carol", Query: "owls"})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Count)
		assert.NotNil(t, out.Results)
	})

	t.Run("k above the maximum is rejected", func(t *testing.T) {
		_, _, err := server.handleSearch(ctx, nil, SearchInput{OwnerID: "alice", Query: "owls", K: domain.MaxK + 1})
		requireCode(t, err, CodeInvalidInput)
	})

	t.Run("missing owner is rejected", func(t *testing.T) {
		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "owls"})
		requireCode(t, err, CodeInvalidInput)
	})

	t.Run("storage failure", func(t *testing.T) {
		s, err := NewServer(&Ports{Retrieval: &mockRetrievalService{err: domain.ErrStorageUnavailable}})
		require.NoError(t, err)
		_, _, err = s.handleSearch(ctx, nil, SearchInput{OwnerID: "alice", Query: "owls"})
		requireCode(t, err, CodeStorageUnavailable)
	})
}

func TestServer_handleIngestText(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t)

	t.Run("stores chunks", func(t *testing.T) {
		_, out, err := server.handleIngestText(ctx, nil, IngestTextInput{
			OwnerID:        "alice",
			ConversationID: "conv-1",
			FileName:       "long.txt",
			Text:           strings.Repeat("abcdefghij", 25),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, out.DocumentID)
		assert.Equal(t, 3, out.ChunkCount)
		assert.Empty(t, out.MissingPages)

		_, doc, err := server.handleGetDocument(ctx, nil, GetDocumentInput{OwnerID: "alice", DocumentID: out.DocumentID})
		require.NoError(t, err)
		assert.Equal(t, "text/plain", doc.MIMEType)
		assert.Equal(t, "mcp:ingest_text/long.txt", doc.URI)
	})

	t.Run("missing conversation", func(t *testing.T) {
		_, _, err := server.handleIngestText(ctx, nil, IngestTextInput{OwnerID: "alice", Text: "x"})
		requireCode(t, err, CodeInvalidInput)
	})

	t.Run("empty text", func(t *testing.T) {
		_, _, err := server.handleIngestText(ctx, nil, IngestTextInput{
			OwnerID: "alice", ConversationID: "conv-1", Text: "   ",
		})
		requireCode(t, err, CodeChunkingFailed)
	})

	t.Run("unsupported media type", func(t *testing.T) {
		_, _, err := server.handleIngestText(ctx, nil, IngestTextInput{
			OwnerID: "alice", ConversationID: "conv-1", Text: "x", MIMEType: "image/png",
		})
		requireCode(t, err, CodeChunkingFailed)
	})

	t.Run("duplicate document id", func(t *testing.T) {
		in := IngestTextInput{
			OwnerID:        "alice",
			ConversationID: "conv-1",
			Text:           "once",
			DocumentID:     "2f1b7a4e-8c1d-4b55-9a7e-3f0d2c6b9e11",
		}
		_, _, err := server.handleIngestText(ctx, nil, in)
		require.NoError(t, err)
		_, _, err = server.handleIngestText(ctx, nil, in)
		requireCode(t, err, CodeDuplicate)
	})
}

func TestServer_handleGetDocument(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t)
	id := ingestText(t, server, "alice", "conv-1", "notes.txt", "remember the milk")

	_, out, err := server.handleGetDocument(ctx, nil, GetDocumentInput{OwnerID: "alice", DocumentID: id})
	require.NoError(t, err)
	assert.Equal(t, id, out.ID)
	assert.Equal(t, "notes.txt", out.FileName)
	assert.Equal(t, 1, out.ChunkCount)
	assert.True(t, out.Active)
	assert.Empty(t, out.Content)

	_, out, err = server.handleGetDocument(ctx, nil, GetDocumentInput{OwnerID: "alice", DocumentID: id, IncludeContent: true})
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", out.Content)

	_, _, err = server.handleGetDocument(ctx, nil, GetDocumentInput{OwnerID: "bob", DocumentID: id})
	requireCode(t, err, CodeNotFound)
}

func TestServer_handleListDocuments(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t)
	ingestText(t, server, "alice", "conv-1", "report.txt", "one")
	ingestText(t, server, "alice", "conv-2", "summary.txt", "two")
	ingestText(t, server, "bob", "conv-1", "report.txt", "three")

	_, out, err := server.handleListDocuments(ctx, nil, ListDocumentsInput{OwnerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)

	_, out, err = server.handleListDocuments(ctx, nil, ListDocumentsInput{OwnerID: "alice", Query: "REPORT"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "conv-1", out.Documents[0].ConversationID)

	_, out, err = server.handleListDocuments(ctx, nil, ListDocumentsInput{OwnerID: "alice", ConversationID: "conv-2"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "summary.txt", out.Documents[0].FileName)

	_, _, err = server.handleListDocuments(ctx, nil, ListDocumentsInput{})
	requireCode(t, err, CodeInvalidInput)
}

func TestServer_handleDeleteDocument(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t)
	id := ingestText(t, server, "alice", "conv-1", "a.txt", "soon gone")

	_, out, err := server.handleDeleteDocument(ctx, nil, DeleteDocumentInput{OwnerID: "bob", DocumentID: id})
	requireCode(t, err, CodeNotFound)

	_, out, err = server.handleDeleteDocument(ctx, nil, DeleteDocumentInput{OwnerID: "alice", DocumentID: id})
	require.NoError(t, err)
	assert.Equal(t, "1 items marked as inactive", out.Message)

	_, list, err := server.handleListDocuments(ctx, nil, ListDocumentsInput{OwnerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 0, list.Count)
	_, list, err = server.handleListDocuments(ctx, nil, ListDocumentsInput{OwnerID: "alice", IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)

	_, out, err = server.handleDeleteDocument(ctx, nil, DeleteDocumentInput{OwnerID: "alice", DocumentID: id, Hard: true})
	require.NoError(t, err)
	assert.Equal(t, "1 items deleted", out.Message)

	_, _, err = server.handleGetDocument(ctx, nil, GetDocumentInput{OwnerID: "alice", DocumentID: id})
	requireCode(t, err, CodeNotFound)
}

func TestServer_handleDeleteConversation(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t)
	ingestText(t, server, "alice", "conv-1", "a.txt", "one")
	ingestText(t, server, "alice", "conv-1", "b.txt", "two")
	ingestText(t, server, "alice", "conv-2", "c.txt", "three")

	_, out, err := server.handleDeleteConversation(ctx, nil, DeleteConversationInput{
		OwnerID: "alice", ConversationID: "conv-1", Permanent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.DeletedCount)
	assert.Equal(t, "2 items deleted", out.Message)

	_, out, err = server.handleDeleteConversation(ctx, nil, DeleteConversationInput{
		OwnerID: "alice", ConversationID: "conv-9",
	})
	require.NoError(t, err)
	assert.Equal(t, "0 items marked as inactive", out.Message)

	_, _, err = server.handleDeleteConversation(ctx, nil, DeleteConversationInput{OwnerID: "alice"})
	requireCode(t, err, CodeInvalidInput)
}

func TestServer_OptionalToolsNeedPorts(t *testing.T) {
	server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{err: errors.New("unused")}})
	require.NoError(t, err)
	assert.Nil(t, server.ports.Ingest)
	assert.Nil(t, server.ports.Lifecycle)
}
