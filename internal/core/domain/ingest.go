package domain

import (
	"fmt"
	"strings"
)

// IngestMetadata describes a document handed to the ingestion pipeline.
type IngestMetadata struct {
	// DocumentID fixes the identity when set; otherwise one is generated.
	// Re-ingesting under the same ID is rejected as a duplicate.
	DocumentID string

	FileName       string
	MIMEType       string
	URI            string
	OwnerID        string
	ConversationID string

	// Metadata carries loader provenance onto the stored document.
	Metadata map[string]any
}

// Validate checks that every required field is present.
func (m IngestMetadata) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"owner", m.OwnerID},
		{"conversation", m.ConversationID},
		{"mime type", m.MIMEType},
		{"uri", m.URI},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidMetadata, f.name)
		}
	}
	return nil
}

// IngestResult is what a successful ingestion returns.
type IngestResult struct {
	// Document is the persisted document.
	Document Document

	// ChunkCount is the number of chunks persisted.
	ChunkCount int

	// MissingPages lists pages dropped because their embedding failed.
	// Only populated under PartialPolicyPersist.
	MissingPages []int
}

// PartialPolicy decides what happens when some chunks fail to embed.
type PartialPolicy string

const (
	// PartialPolicyAbort rejects the whole ingestion.
	PartialPolicyAbort PartialPolicy = "abort"

	// PartialPolicyPersist stores the document with the embedded chunks only.
	PartialPolicyPersist PartialPolicy = "partial"
)

// IsValid returns true if the policy is recognised.
func (p PartialPolicy) IsValid() bool {
	return p == PartialPolicyAbort || p == PartialPolicyPersist
}

// MetadataMissingPages is the document metadata key listing dropped pages.
const MetadataMissingPages = "missing_pages"

// MetadataChunkOverlap is the document metadata key recording how many runes
// adjacent chunks share, so the text can be reassembled.
const MetadataChunkOverlap = "chunk_overlap"

// MetadataInt reads an integer stored in document metadata. Values that went
// through JSON come back as float64 and are accepted when integral.
func MetadataInt(m map[string]any, key string) (int, bool) {
	return toInt(m[key])
}

// MetadataInts reads a list of integers stored in document metadata.
func MetadataInts(m map[string]any, key string) []int {
	switch v := m[key].(type) {
	case []int:
		return v
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			if n, ok := toInt(item); ok {
				out = append(out, n)
			}
		}
		return out
	default:
		return nil
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
