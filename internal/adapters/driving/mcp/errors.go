// Package mcp provides an MCP (Model Context Protocol) server adapter for sercha-rag.
// It lets AI assistants ingest documents and run owner-scoped retrieval.
package mcp

import (
	"context"
	"errors"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// Stable error codes reported in tool error results.
const (
	CodeNotFound             = "not_found"
	CodeInvalidInput         = "invalid_input"
	CodeChunkingFailed       = "chunking_failed"
	CodeEmbeddingUnavailable = "embedding_unavailable"
	CodeDuplicate            = "duplicate"
	CodeStorageUnavailable   = "storage_unavailable"
	CodeCanceled             = "canceled"
	CodeInternal             = "internal"
)

// ErrorCode classifies err for tool callers.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidMetadata):
		return CodeInvalidInput
	case errors.Is(err, domain.ErrChunking):
		return CodeChunkingFailed
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return CodeEmbeddingUnavailable
	case errors.Is(err, domain.ErrDuplicateChunk):
		return CodeDuplicate
	case errors.Is(err, domain.ErrStorageUnavailable):
		return CodeStorageUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}

// ToolError is returned by tool handlers. The SDK reports it to the
// client as a result with IsError set, prefixed with the stable code.
type ToolError struct {
	Code string
	Err  error
}

func (e *ToolError) Error() string {
	return e.Code + ": " + e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func toolError(err error) error {
	return &ToolError{Code: ErrorCode(err), Err: err}
}
