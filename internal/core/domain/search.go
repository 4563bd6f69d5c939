package domain

import (
	"fmt"
	"strings"
)

const (
	// DefaultK is the number of hits returned when none is requested.
	DefaultK = 5

	// MaxK is the largest number of hits a single search may request.
	MaxK = 1000
)

// RetrievalHit is a chunk ranked by similarity to a query.
// Hits are never persisted.
type RetrievalHit struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// DocumentID identifies the parent document.
	DocumentID string

	// Page is the chunk's ordinal within the document.
	Page int

	// Content is the chunk text.
	Content string

	// Score is 1 - cosine distance; higher is more similar.
	Score float64

	// Document carries the parent's attribution fields.
	Document Document
}

// SearchFilter restricts a nearest-neighbour query.
type SearchFilter struct {
	// OwnerID is required; search never returns another owner's chunks.
	OwnerID string

	// ActiveOnly excludes chunks of soft-deleted documents.
	ActiveOnly bool

	// MIMEType restricts to documents of one media type when set.
	MIMEType string

	// ConversationID restricts to one conversation when set.
	ConversationID string
}

// SearchRequest is a retrieval query. Exactly one of Text or Vector is set.
type SearchRequest struct {
	Text           string
	Vector         []float32
	OwnerID        string
	K              int
	ActiveOnly     bool
	MIMEType       string
	ConversationID string
}

// NewSearchRequest returns a text query restricted to active documents.
func NewSearchRequest(text, ownerID string, k int) SearchRequest {
	return SearchRequest{
		Text:       text,
		OwnerID:    ownerID,
		K:          k,
		ActiveOnly: true,
	}
}

// Validate checks the request shape and bounds.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	hasText := strings.TrimSpace(r.Text) != ""
	hasVector := len(r.Vector) > 0
	if hasText == hasVector {
		return fmt.Errorf("%w: exactly one of query text or vector is required", ErrInvalidInput)
	}
	if r.K > MaxK {
		return fmt.Errorf("%w: k must not exceed %d", ErrInvalidInput, MaxK)
	}
	return nil
}

// Filter returns the store filter for this request.
func (r SearchRequest) Filter() SearchFilter {
	return SearchFilter{
		OwnerID:        r.OwnerID,
		ActiveOnly:     r.ActiveOnly,
		MIMEType:       r.MIMEType,
		ConversationID: r.ConversationID,
	}
}
