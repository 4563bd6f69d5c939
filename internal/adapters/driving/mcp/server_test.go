package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestNewServer(t *testing.T) {
	t.Run("nil retrieval service returns error", func(t *testing.T) {
		ports := &Ports{}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("retrieval only creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.Handler())
	})
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingRetrievalService)
	assert.NoError(t, (&Ports{Retrieval: &mockRetrievalService{}}).Validate())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("get: %w", domain.ErrNotFound), CodeNotFound},
		{domain.ErrInvalidInput, CodeInvalidInput},
		{domain.ErrInvalidMetadata, CodeInvalidInput},
		{domain.ErrUnsupportedMIMEType, CodeChunkingFailed},
		{domain.ErrEmbeddingUnavailable, CodeEmbeddingUnavailable},
		{domain.ErrDuplicateChunk, CodeDuplicate},
		{domain.ErrStorageUnavailable, CodeStorageUnavailable},
		{context.Canceled, CodeCanceled},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestToolError(t *testing.T) {
	err := toolError(fmt.Errorf("lookup: %w", domain.ErrNotFound))

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeNotFound, te.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "not_found: lookup: not found", err.Error())
}
