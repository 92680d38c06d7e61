package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/internal/domain"
)

var errFakeNotFound = errors.New("not found")

type memCapabilityStore struct {
	mu   sync.Mutex
	caps map[uuid.UUID]domain.Capability
}

func newMemCapabilityStore() *memCapabilityStore {
	return &memCapabilityStore{caps: map[uuid.UUID]domain.Capability{}}
}

func (s *memCapabilityStore) Upsert(_ context.Context, c *domain.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps[c.ID] = *c
	return nil
}

func (s *memCapabilityStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Capability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caps[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return &c, nil
}

func (s *memCapabilityStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.Capability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Capability
	for _, c := range s.caps {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memCapabilityStore) ListAll(_ context.Context) ([]domain.Capability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Capability, 0, len(s.caps))
	for _, c := range s.caps {
		out = append(out, c)
	}
	return out, nil
}

func (s *memCapabilityStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.caps, id)
	return nil
}

type memNeedStore struct {
	mu    sync.Mutex
	needs map[uuid.UUID]domain.Need
}

func newMemNeedStore() *memNeedStore {
	return &memNeedStore{needs: map[uuid.UUID]domain.Need{}}
}

func (s *memNeedStore) Create(_ context.Context, n *domain.Need) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needs[n.ID] = *n
	return nil
}

func (s *memNeedStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Need, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.needs[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return &n, nil
}

func (s *memNeedStore) ListOpenByRequester(_ context.Context, requesterID uuid.UUID) ([]domain.Need, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Need
	for _, n := range s.needs {
		if n.RequesterID == requesterID {
			out = append(out, n)
		}
	}
	return out, nil
}

type memMatchStore struct {
	mu      sync.Mutex
	matches map[uuid.UUID]domain.Match
}

func newMemMatchStore() *memMatchStore {
	return &memMatchStore{matches: map[uuid.UUID]domain.Match{}}
}

func (s *memMatchStore) Create(_ context.Context, m *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = *m
	return nil
}

func (s *memMatchStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return &m, nil
}

func (s *memMatchStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.MatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return errFakeNotFound
	}
	m.Status = status
	s.matches[id] = m
	return nil
}

func (s *memMatchStore) ListByNeed(_ context.Context, needID uuid.UUID) ([]domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Match
	for _, m := range s.matches {
		if m.NeedID == needID {
			out = append(out, m)
		}
	}
	return out, nil
}

type memOutcomeStore struct {
	mu       sync.Mutex
	outcomes map[uuid.UUID]domain.Outcome
	signals  []domain.LearningSignal
}

func newMemOutcomeStore() *memOutcomeStore {
	return &memOutcomeStore{outcomes: map[uuid.UUID]domain.Outcome{}}
}

func (s *memOutcomeStore) UpsertOutcome(_ context.Context, o *domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[o.MatchID] = *o
	return nil
}

func (s *memOutcomeStore) GetOutcome(_ context.Context, matchID uuid.UUID) (*domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[matchID]
	if !ok {
		return nil, errFakeNotFound
	}
	return &o, nil
}

func (s *memOutcomeStore) AppendSignal(_ context.Context, sig *domain.LearningSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig.Seq = int64(len(s.signals)) + 1
	s.signals = append(s.signals, *sig)
	return nil
}

func (s *memOutcomeStore) ListSignalsFrom(_ context.Context, seq int64, limit int) ([]domain.LearningSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LearningSignal
	for _, sig := range s.signals {
		if sig.Seq <= seq {
			continue
		}
		out = append(out, sig)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
