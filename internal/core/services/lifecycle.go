package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure LifecycleService implements the interface.
var _ driving.LifecycleService = (*LifecycleService)(nil)

// LifecycleService manages document state. Ownership is enforced by the
// store, so a document owned by someone else looks exactly like a missing one.
type LifecycleService struct {
	store driven.VectorStore
}

// NewLifecycleService creates a new lifecycle service.
func NewLifecycleService(store driven.VectorStore) *LifecycleService {
	return &LifecycleService{store: store}
}

// SoftDelete marks a document inactive. Its chunks stay in place.
func (s *LifecycleService) SoftDelete(ctx context.Context, id, ownerID string) error {
	if err := requireIDs(id, ownerID); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id, ownerID, false); err != nil {
		return fmt.Errorf("soft deleting %s: %w", id, err)
	}
	logger.Info("Document %s marked as inactive", id)
	return nil
}

// HardDelete removes a document and its chunks.
func (s *LifecycleService) HardDelete(ctx context.Context, id, ownerID string) error {
	if err := requireIDs(id, ownerID); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id, ownerID, true); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	logger.Info("Document %s deleted", id)
	return nil
}

// Restore marks a soft deleted document active again.
func (s *LifecycleService) Restore(ctx context.Context, id, ownerID string) error {
	active := true
	_, err := s.Update(ctx, id, ownerID, domain.DocumentUpdate{Active: &active})
	return err
}

// Update applies an enumerated update to a document.
func (s *LifecycleService) Update(
	ctx context.Context, id, ownerID string, update domain.DocumentUpdate,
) (*domain.Document, error) {
	if err := requireIDs(id, ownerID); err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.store.UpdateDocument(ctx, id, ownerID, update)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", id, err)
	}
	return doc, nil
}

// DeleteAllForConversation soft or permanently deletes the owner's
// documents in a conversation and returns how many were affected.
// Documents of other owners in the same conversation are never touched.
func (s *LifecycleService) DeleteAllForConversation(
	ctx context.Context, conversationID, ownerID string, permanent bool,
) (int, error) {
	if strings.TrimSpace(conversationID) == "" {
		return 0, fmt.Errorf("%w: conversation is required", domain.ErrInvalidMetadata)
	}
	if strings.TrimSpace(ownerID) == "" {
		return 0, fmt.Errorf("%w: owner is required", domain.ErrInvalidMetadata)
	}

	n, err := s.store.DeleteConversation(ctx, conversationID, ownerID, permanent)
	if err != nil {
		return 0, fmt.Errorf("deleting conversation %s: %w", conversationID, err)
	}
	logger.Info("Conversation %s: %s", conversationID, DeletedMessage(n, permanent))
	return n, nil
}

// DeletedMessage describes the outcome of a bulk delete.
func DeletedMessage(n int, permanent bool) string {
	if permanent {
		return fmt.Sprintf("%d items deleted", n)
	}
	return fmt.Sprintf("%d items marked as inactive", n)
}

func requireIDs(id, ownerID string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidMetadata)
	}
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner is required", domain.ErrInvalidMetadata)
	}
	return nil
}
