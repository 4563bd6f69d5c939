package mcp

import (
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval provides search and document reads.
	Retrieval driving.RetrievalService

	// Ingest stores new documents. The ingest_text tool is only
	// registered when it is set.
	Ingest driving.IngestService

	// Lifecycle deletes documents. The delete tools are only registered
	// when it is set.
	Lifecycle driving.LifecycleService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
