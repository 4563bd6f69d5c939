// Package chunker splits document text into fixed-size overlapping spans.
package chunker

import (
	"fmt"
	"iter"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits text into chunks of chunkSize runes where adjacent
// chunks share overlap runes.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// FromSettings converts chunk settings into options.
func FromSettings(s domain.ChunkSettings) []Option {
	return []Option{WithChunkSize(s.Size), WithOverlap(s.Overlap)}
}

// New creates a chunker processor. The overlap must be non-negative and
// strictly smaller than the chunk size, otherwise the step between chunks
// would not advance.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", domain.ErrInvalidChunkConfig, p.chunkSize)
	}
	if p.overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d must not be negative", domain.ErrInvalidChunkConfig, p.overlap)
	}
	if p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			domain.ErrInvalidChunkConfig, p.overlap, p.chunkSize)
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Spans yields the chunks of text in order. Offsets count runes, so
// multi-byte characters are never split. Iteration stops at the first
// span that reaches the end of the text.
func (p *Processor) Spans(text string) iter.Seq[domain.Span] {
	return func(yield func(domain.Span) bool) {
		if text == "" {
			return
		}

		runes := []rune(text)
		step := p.chunkSize - p.overlap

		for page, start := 0, 0; ; page, start = page+1, start+step {
			end := min(start+p.chunkSize, len(runes))

			span := domain.Span{
				Page:  page,
				Start: start,
				End:   end,
				Text:  string(runes[start:end]),
			}
			if !yield(span) || end == len(runes) {
				return
			}
		}
	}
}

// Split collects all spans of text.
func (p *Processor) Split(text string) []domain.Span {
	var spans []domain.Span
	for s := range p.Spans(text) {
		spans = append(spans, s)
	}
	return spans
}
