package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Normaliser extracts plain text from raw document bytes.
// Each normaliser handles specific MIME types (e.g., HTML, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers return 50-89, fallbacks 1-9.
	Priority() int

	// Normalise returns the document text.
	Normalise(ctx context.Context, raw *domain.RawDocument) (string, error)
}

// NormaliserRegistry selects a normaliser for a MIME type.
type NormaliserRegistry interface {
	// Register adds a normaliser.
	Register(n Normaliser)

	// Get returns the highest-priority normaliser for the MIME type.
	// Returns domain.ErrUnsupportedMIMEType when none matches.
	Get(mimeType string) (Normaliser, error)

	// SupportedMIMETypes lists every registered MIME type.
	SupportedMIMETypes() []string
}
