package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/loomlabs/loom/internal/domain"
	"github.com/loomlabs/loom/internal/index"
)

const (
	DefaultTopK                = 10
	DefaultCandidateK          = 50
	DefaultSimilarityThreshold = 0.3
	DefaultMinOverall          = 0.4
	DefaultScoringShards       = 4
	DefaultScoringBudget       = 2 * time.Second
	DefaultMaxAlternatives     = 3
)

// MatchConfig is the serving-path policy: candidate breadth, score
// floor, parallelism, latency budget and the synergy trigger. All of it
// loads from configuration rather than being baked in.
type MatchConfig struct {
	TopK                int
	CandidateK          int
	SimilarityThreshold float64
	MinOverall          float64
	Shards              int
	Budget              time.Duration
	DetectSynergies     bool
	MaxAlternatives     int
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		TopK:                DefaultTopK,
		CandidateK:          DefaultCandidateK,
		SimilarityThreshold: DefaultSimilarityThreshold,
		MinOverall:          DefaultMinOverall,
		Shards:              DefaultScoringShards,
		Budget:              DefaultScoringBudget,
		DetectSynergies:     true,
		MaxAlternatives:     DefaultMaxAlternatives,
	}
}

// SubmitResult is the ranked, explained outcome of one need submission.
type SubmitResult struct {
	Matches   []domain.Match       `json:"matches"`
	Synergies []domain.SynergyPair `json:"synergies,omitempty"`
	// Partial is set when the latency budget expired before every
	// scoring shard finished; the returned matches come from the shards
	// that completed.
	Partial bool `json:"partial,omitempty"`
}

// MatchService runs the serving path: candidate retrieval, parallel
// scoring, deterministic ranking, provenance attachment and optional
// synergy detection.
type MatchService struct {
	idx        *index.Index
	scorer     *Scorer
	provenance *ProvenanceBuilder
	synergy    *SynergyDetector
	needs      domain.NeedStore
	matches    domain.MatchStore
	logger     *zap.Logger
	cfg        MatchConfig
}

func NewMatchService(
	idx *index.Index,
	scorer *Scorer,
	synergy *SynergyDetector,
	needs domain.NeedStore,
	matches domain.MatchStore,
	cfg MatchConfig,
	logger *zap.Logger,
) *MatchService {
	return &MatchService{
		idx:        idx,
		scorer:     scorer,
		provenance: NewProvenanceBuilder(),
		synergy:    synergy,
		needs:      needs,
		matches:    matches,
		logger:     logger,
		cfg:        cfg,
	}
}

type scoredCandidate struct {
	capability domain.Capability
	detail     *ScoreDetail
}

// SubmitNeed scores the need against the candidate index and returns the
// ranked match list with a full provenance trail per match. Submitting
// the same need twice against unchanged inputs and the same calibration
// snapshot returns identical scores and byte-identical provenance.
// providerSignals carries per-provider feasibility inputs; providers
// without an entry score with all-neutral signals.
func (s *MatchService) SubmitNeed(
	ctx context.Context,
	need *domain.Need,
	requesterCaps []domain.Capability,
	providerSignals map[uuid.UUID]domain.FeasibilitySignals,
) (*SubmitResult, error) {
	if err := need.Validate(); err != nil {
		return nil, err
	}
	if len(need.Embedding) == 0 {
		return nil, fmt.Errorf("%w: need %s", ErrMissingEmbedding, need.ID)
	}

	if need.CreatedAt.IsZero() {
		need.CreatedAt = time.Now().UTC()
	}
	if err := s.needs.Create(ctx, need); err != nil {
		return nil, fmt.Errorf("persist need: %w", err)
	}

	candidates, err := s.idx.Query(need.Embedding, s.cfg.CandidateK, s.cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	// Self-matches never help anyone.
	filtered := candidates[:0]
	for _, c := range candidates {
		if c.Capability.OwnerID != need.RequesterID {
			filtered = append(filtered, c)
		}
	}
	candidates = filtered

	requesterTags := unionTagSets(requesterCaps)
	scored, partial := s.scoreCandidates(ctx, need, candidates, requesterTags, providerSignals)

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].detail.Scores.Overall != scored[j].detail.Scores.Overall {
			return scored[i].detail.Scores.Overall > scored[j].detail.Scores.Overall
		}
		return scored[i].capability.ID.String() < scored[j].capability.ID.String()
	})
	if len(scored) > s.cfg.TopK {
		scored = scored[:s.cfg.TopK]
	}

	result := &SubmitResult{Partial: partial}
	for rank, sc := range scored {
		match := domain.Match{
			ID:           domain.MatchID(need.ID, sc.capability.ID),
			NeedID:       need.ID,
			RequesterID:  need.RequesterID,
			CapabilityID: sc.capability.ID,
			ProviderID:   sc.capability.OwnerID,
			Scores:       sc.detail.Scores,
			Status:       domain.MatchProposed,
			Provenance:   s.provenance.Build(need, &sc.capability, sc.detail),
			CreatedAt:    need.CreatedAt,
		}
		if rank == 0 {
			s.provenance.AttachAlternatives(&match.Provenance, s.alternatives(scored))
		}
		if err := s.matches.Create(ctx, &match); err != nil {
			s.logger.Warn("failed to persist match",
				zap.String("match_id", match.ID.String()),
				zap.Error(err))
		}
		result.Matches = append(result.Matches, match)
	}

	if s.cfg.DetectSynergies && s.synergy != nil {
		result.Synergies = s.synergy.Detect(ctx, result.Matches, need, requesterCaps)
	}

	return result, nil
}

// scoreCandidates fans scoring out across shards under the latency
// budget. Scoring one candidate never depends on another, so parallel
// execution merges to the same result as sequential. A shard that the
// budget cuts off is discarded whole; the request degrades to the
// completed shards instead of failing.
func (s *MatchService) scoreCandidates(
	ctx context.Context,
	need *domain.Need,
	candidates []index.Candidate,
	requesterTags map[string]struct{},
	providerSignals map[uuid.UUID]domain.FeasibilitySignals,
) ([]scoredCandidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	shards := shardCandidates(candidates, s.cfg.Shards)
	results := make([][]scoredCandidate, len(shards))
	completed := make([]bool, len(shards))

	scoreCtx, cancel := context.WithTimeout(ctx, s.cfg.Budget)
	defer cancel()

	g, scoreCtx := errgroup.WithContext(scoreCtx)
	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			out := make([]scoredCandidate, 0, len(shard))
			for _, cand := range shard {
				if scoreCtx.Err() != nil {
					return nil // budget expired, discard this shard
				}
				signals := providerSignals[cand.Capability.OwnerID]
				detail, err := s.scorer.Score(need, &cand.Capability, requesterTags, signals)
				if err != nil {
					s.logger.Warn("skipping unscorable candidate",
						zap.String("capability_id", cand.Capability.ID.String()),
						zap.Error(err))
					continue
				}
				if detail.Scores.Overall < s.cfg.MinOverall {
					continue
				}
				out = append(out, scoredCandidate{capability: cand.Capability, detail: detail})
			}
			results[i] = out
			completed[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var merged []scoredCandidate
	partial := false
	for i := range shards {
		if !completed[i] {
			partial = true
			continue
		}
		merged = append(merged, results[i]...)
	}
	if partial {
		s.logger.Warn("scoring budget expired, returning partial results",
			zap.String("need_id", need.ID.String()),
			zap.Duration("budget", s.cfg.Budget))
	}
	return merged, partial
}

func (s *MatchService) alternatives(scored []scoredCandidate) []domain.Alternative {
	var alts []domain.Alternative
	top := scored[0].detail.Scores.Overall
	for _, sc := range scored[1:] {
		if len(alts) >= s.cfg.MaxAlternatives {
			break
		}
		alts = append(alts, domain.Alternative{
			CapabilityID: sc.capability.ID,
			Overall:      sc.detail.Scores.Overall,
			Reason: fmt.Sprintf("overall %s below the top score %s",
				fmtScore(sc.detail.Scores.Overall), fmtScore(top)),
		})
	}
	return alts
}

func shardCandidates(candidates []index.Candidate, shards int) [][]index.Candidate {
	if shards <= 1 || len(candidates) <= shards {
		return [][]index.Candidate{candidates}
	}
	size := (len(candidates) + shards - 1) / shards
	var out [][]index.Candidate
	for start := 0; start < len(candidates); start += size {
		end := start + size
		if end > len(candidates) {
			end = len(candidates)
		}
		out = append(out, candidates[start:end])
	}
	return out
}

func unionTagSets(caps []domain.Capability) map[string]struct{} {
	union := make(map[string]struct{})
	for i := range caps {
		for t := range caps[i].TagSet() {
			union[t] = struct{}{}
		}
	}
	return union
}
