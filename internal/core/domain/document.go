package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document represents an ingested unit of content.
// It is created together with its chunks and owned by exactly one owner.
type Document struct {
	// ID is the globally unique identifier (a UUID string).
	ID string

	// FileName is the human-readable display name.
	FileName string

	// MIMEType is the media type of the original bytes.
	MIMEType string

	// URI is the original location (file path, URL, Drive link).
	URI string

	// OwnerID identifies who owns the document.
	OwnerID string

	// ConversationID groups documents belonging to one conversation.
	ConversationID string

	// Active is false once the document has been soft deleted.
	// Inactive documents are excluded from default listings and search.
	Active bool

	// Metadata contains loader-specific key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document record last changed.
	UpdatedAt time.Time
}

// Chunk represents one embedded span of a document's text.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Page is the 0-based ordinal assigned by the chunker.
	// (DocumentID, Page) is unique.
	Page int

	// Content is the literal text span.
	Content string

	// Embedding is the vector for similarity search.
	// Nil when the chunk was stored without a vector.
	Embedding []float32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentUpdate is the complete set of mutable document fields.
// Nil fields are left unchanged.
type DocumentUpdate struct {
	FileName *string
	Active   *bool
}

// Validate rejects empty updates and blank file names.
func (u DocumentUpdate) Validate() error {
	if u.FileName == nil && u.Active == nil {
		return fmt.Errorf("%w: update sets no fields", ErrInvalidMetadata)
	}
	if u.FileName != nil && strings.TrimSpace(*u.FileName) == "" {
		return fmt.Errorf("%w: file name must not be empty", ErrInvalidMetadata)
	}
	return nil
}

// Apply copies the set fields onto doc.
func (u DocumentUpdate) Apply(doc *Document) {
	if u.FileName != nil {
		doc.FileName = strings.TrimSpace(*u.FileName)
	}
	if u.Active != nil {
		doc.Active = *u.Active
	}
}

// DocumentFilter selects documents for listing.
type DocumentFilter struct {
	// OwnerID is required; listings never cross owners.
	OwnerID string

	// ConversationID restricts to one conversation when set.
	ConversationID string

	// Query matches file names case-insensitively when set.
	Query string

	// MIMEType restricts to one media type when set.
	MIMEType string

	// ActiveOnly hides soft-deleted documents.
	ActiveOnly bool

	// Limit caps the number of results. Zero means no limit.
	Limit int

	// Offset skips results for pagination.
	Offset int
}

// DocumentDetails is a document with derived information for display.
type DocumentDetails struct {
	Document

	// ChunkCount is the number of stored chunks.
	ChunkCount int

	// MissingPages lists pages that were not embedded, if any.
	MissingPages []int
}

// Span is one piece of text produced by a chunker.
type Span struct {
	// Page is the 0-based ordinal of the span.
	Page int

	// Start and End are rune offsets into the source text.
	Start int
	End   int

	// Text is the literal content between Start and End.
	Text string
}
