// Package domain defines the core business entities for sercha-rag.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested unit of content with ownership and lifecycle state
//   - Chunk: One embedded, searchable span of a document's text
//   - RetrievalHit: A ranked chunk returned by similarity search
//   - RawDocument: Opaque bytes handed over by a loader
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
