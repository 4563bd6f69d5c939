package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// LifecycleService manages document visibility and removal.
type LifecycleService interface {
	// SoftDelete marks the document inactive; its chunks stay stored.
	SoftDelete(ctx context.Context, id, ownerID string) error

	// HardDelete removes the document and all of its chunks.
	HardDelete(ctx context.Context, id, ownerID string) error

	// Restore marks a soft-deleted document active again.
	Restore(ctx context.Context, id, ownerID string) error

	// Update applies an enumerated update to a document.
	Update(ctx context.Context, id, ownerID string, update domain.DocumentUpdate) (*domain.Document, error)

	// DeleteAllForConversation deletes every document of the owner in the
	// conversation and returns how many were affected.
	DeleteAllForConversation(ctx context.Context, conversationID, ownerID string, permanent bool) (int, error)
}
