package domain

import (
	"context"

	"github.com/google/uuid"
)

type CapabilityStore interface {
	Upsert(ctx context.Context, c *Capability) error
	GetByID(ctx context.Context, id uuid.UUID) (*Capability, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Capability, error)
	ListAll(ctx context.Context) ([]Capability, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type NeedStore interface {
	Create(ctx context.Context, n *Need) error
	GetByID(ctx context.Context, id uuid.UUID) (*Need, error)
	ListOpenByRequester(ctx context.Context, requesterID uuid.UUID) ([]Need, error)
}

type MatchStore interface {
	Create(ctx context.Context, m *Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*Match, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status MatchStatus) error
	ListByNeed(ctx context.Context, needID uuid.UUID) ([]Match, error)
}

// OutcomeStore persists outcomes and the append-only learning-signal log.
// AppendSignal assigns the next sequence number; entries are never
// mutated or deleted.
type OutcomeStore interface {
	UpsertOutcome(ctx context.Context, o *Outcome) error
	GetOutcome(ctx context.Context, matchID uuid.UUID) (*Outcome, error)
	AppendSignal(ctx context.Context, s *LearningSignal) error
	ListSignalsFrom(ctx context.Context, seq int64, limit int) ([]LearningSignal, error)
}

// EmbeddingClient produces a fixed-length vector for a text, deterministic
// for identical input. The engine never substitutes a default vector
// when embedding fails.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FeasibilitySignals are externally supplied compatibility signals
// (region, timezone, availability overlap), each in [0,1]. A missing
// signal is treated as a neutral 0.5, never as a failure.
type FeasibilitySignals map[string]float64
