package driven

import (
	"iter"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Chunker splits normalised text into ordered, overlapping spans.
type Chunker interface {
	// Spans yields spans in page order. The sequence is finite and
	// can be iterated more than once with the same result.
	Spans(text string) iter.Seq[domain.Span]
}
