package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomlabs/loom/internal/domain"
	"github.com/loomlabs/loom/internal/index"
)

// CapabilityService registers provider capabilities: embed, validate,
// persist, index. An upsert replaces the whole record atomically in both
// the store and the index; concurrent match queries never observe a
// half-written capability.
type CapabilityService struct {
	store    domain.CapabilityStore
	idx      *index.Index
	embedder domain.EmbeddingClient
	logger   *zap.Logger
}

func NewCapabilityService(store domain.CapabilityStore, idx *index.Index, embedder domain.EmbeddingClient, logger *zap.Logger) *CapabilityService {
	return &CapabilityService{store: store, idx: idx, embedder: embedder, logger: logger}
}

// Upsert registers or wholly replaces a capability. When no embedding is
// supplied, one is produced from the description; embedding failure is
// fatal to this operation — the engine never substitutes a default
// vector.
func (s *CapabilityService) Upsert(ctx context.Context, c *domain.Capability) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if len(c.Embedding) == 0 {
		text := c.Name
		if c.Description != "" {
			text += ": " + c.Description
		}
		embedding, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed capability %s: %w", c.ID, err)
		}
		c.Embedding = embedding
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	// Dimension is checked by the index before anything is stored, so a
	// mismatched capability never lands in either place.
	if err := s.idx.Upsert(*c); err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, c); err != nil {
		return fmt.Errorf("persist capability: %w", err)
	}
	return nil
}

// Delete withdraws a capability from matching and from the store.
func (s *CapabilityService) Delete(ctx context.Context, id uuid.UUID) error {
	s.idx.Remove(id)
	return s.store.Delete(ctx, id)
}

// WarmIndex loads every stored capability into the index. Entries that
// no longer fit the index dimension are skipped with a warning so one
// bad record cannot block boot.
func (s *CapabilityService) WarmIndex(ctx context.Context) error {
	caps, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list capabilities: %w", err)
	}
	loaded := 0
	for i := range caps {
		if err := s.idx.Upsert(caps[i]); err != nil {
			s.logger.Warn("skipping capability during index warm-up",
				zap.String("capability_id", caps[i].ID.String()),
				zap.Error(err))
			continue
		}
		loaded++
	}
	s.logger.Info("candidate index warmed",
		zap.Int("loaded", loaded),
		zap.Int("skipped", len(caps)-loaded))
	return nil
}
