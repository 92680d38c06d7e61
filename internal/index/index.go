// Package index maintains the in-memory candidate index the serving path
// queries. Mutations build a complete new snapshot and publish it
// atomically, so concurrent readers always observe a consistent index
// and never a half-applied upsert.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomlabs/loom/internal/domain"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Candidate is one query hit: a capability and its clipped cosine
// similarity to the query embedding.
type Candidate struct {
	Capability domain.Capability
	Similarity float64
}

type entry struct {
	cap  domain.Capability
	norm float64
}

type snapshot struct {
	entries map[uuid.UUID]entry
}

// Index holds capability vectors behind an atomically swapped immutable
// snapshot. Upserts serialize on a writer mutex; queries are lock-free.
type Index struct {
	dim     int
	logger  *zap.Logger
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	skipped atomic.Int64
}

func New(dim int, logger *zap.Logger) *Index {
	idx := &Index{dim: dim, logger: logger}
	idx.current.Store(&snapshot{entries: map[uuid.UUID]entry{}})
	return idx
}

func (idx *Index) Dim() int { return idx.dim }

func (idx *Index) Len() int {
	return len(idx.current.Load().entries)
}

// SkippedCandidates returns how many stored candidates were found
// corrupted and dropped from query results so far.
func (idx *Index) SkippedCandidates() int64 {
	return idx.skipped.Load()
}

// Upsert inserts or wholly replaces the capability with the same ID.
// A capability whose embedding dimension disagrees with the index never
// enters it.
func (idx *Index) Upsert(c domain.Capability) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Embedding) != idx.dim {
		return fmt.Errorf("%w: capability %s has dimension %d, index expects %d",
			ErrDimensionMismatch, c.ID, len(c.Embedding), idx.dim)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev := idx.current.Load()
	next := &snapshot{entries: make(map[uuid.UUID]entry, len(prev.entries)+1)}
	for id, e := range prev.entries {
		next.entries[id] = e
	}
	next.entries[c.ID] = entry{cap: c, norm: Norm(c.Embedding)}
	idx.current.Store(next)
	return nil
}

// Remove drops a capability from the index. Removing an absent ID is a
// no-op.
func (idx *Index) Remove(id uuid.UUID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev := idx.current.Load()
	if _, ok := prev.entries[id]; !ok {
		return
	}
	next := &snapshot{entries: make(map[uuid.UUID]entry, len(prev.entries)-1)}
	for eid, e := range prev.entries {
		if eid != id {
			next.entries[eid] = e
		}
	}
	idx.current.Store(next)
}

// Query returns up to k candidates with similarity >= threshold, ranked
// by similarity descending, ties broken by proficiency descending, then
// capability ID ascending. An empty index or no candidate above the
// threshold yields an empty slice, not an error. Candidates found with
// an unexpected shape are skipped and logged; the query still returns
// the remaining valid ones.
func (idx *Index) Query(embedding []float32, k int, threshold float64) ([]Candidate, error) {
	if len(embedding) != idx.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			ErrDimensionMismatch, len(embedding), idx.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	snap := idx.current.Load()
	queryNorm := Norm(embedding)

	candidates := make([]Candidate, 0, len(snap.entries))
	for id, e := range snap.entries {
		if len(e.cap.Embedding) != idx.dim || e.norm == 0 {
			idx.skipped.Add(1)
			idx.logger.Warn("skipping inconsistent index entry",
				zap.String("capability_id", id.String()),
				zap.Int("dimension", len(e.cap.Embedding)))
			continue
		}
		sim := ClipUnit(Cosine(embedding, e.cap.Embedding, queryNorm, e.norm))
		if sim < threshold {
			continue
		}
		candidates = append(candidates, Candidate{Capability: e.cap, Similarity: sim})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		if candidates[i].Capability.Proficiency != candidates[j].Capability.Proficiency {
			return candidates[i].Capability.Proficiency > candidates[j].Capability.Proficiency
		}
		return candidates[i].Capability.ID.String() < candidates[j].Capability.ID.String()
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}
