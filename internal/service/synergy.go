package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/loomlabs/loom/internal/domain"
)

const DefaultSynergyThreshold = 0.5

// SynergyDetector cross-checks proposed matches against the provider's
// own open needs: when the provider's need is in turn well matched by one
// of the requester's capabilities, the pairing benefits both sides.
type SynergyDetector struct {
	needs        domain.NeedStore
	capabilities domain.CapabilityStore
	scorer       *Scorer
	threshold    float64
	logger       *zap.Logger
}

func NewSynergyDetector(
	needs domain.NeedStore,
	capabilities domain.CapabilityStore,
	scorer *Scorer,
	threshold float64,
	logger *zap.Logger,
) *SynergyDetector {
	return &SynergyDetector{
		needs:        needs,
		capabilities: capabilities,
		scorer:       scorer,
		threshold:    threshold,
		logger:       logger,
	}
}

// Detect scores each provider's open needs against the requester's
// capabilities using the same scorer that produced the forward matches.
// Each unordered need/need combination is reported at most once, no
// matter which side's need triggered the detection, and the synergy
// score is the harmonic mean of the two overall scores so that lopsided
// pairs rank below balanced ones.
func (d *SynergyDetector) Detect(
	ctx context.Context,
	matches []domain.Match,
	need *domain.Need,
	requesterCaps []domain.Capability,
) []domain.SynergyPair {
	if len(matches) == 0 || len(requesterCaps) == 0 {
		return nil
	}

	// Deterministic reverse-candidate order.
	caps := make([]domain.Capability, len(requesterCaps))
	copy(caps, requesterCaps)
	sort.Slice(caps, func(i, j int) bool {
		return caps[i].ID.String() < caps[j].ID.String()
	})

	seen := make(map[string]struct{})
	var pairs []domain.SynergyPair

	for _, match := range matches {
		providerNeeds, err := d.needs.ListOpenByRequester(ctx, match.ProviderID)
		if err != nil {
			d.logger.Warn("failed to list provider needs for synergy check",
				zap.String("provider_id", match.ProviderID.String()),
				zap.Error(err))
			continue
		}
		if len(providerNeeds) == 0 {
			continue
		}

		providerCaps, err := d.capabilities.ListByOwner(ctx, match.ProviderID)
		if err != nil {
			d.logger.Warn("failed to list provider capabilities for synergy check",
				zap.String("provider_id", match.ProviderID.String()),
				zap.Error(err))
			continue
		}
		providerTags := unionTagSets(providerCaps)

		for i := range providerNeeds {
			reverseNeed := &providerNeeds[i]
			key := domain.SynergyKey(need.ID, reverseNeed.ID)
			if _, dup := seen[key]; dup {
				continue
			}

			bestCap, bestScore, found := d.bestReverse(reverseNeed, caps, providerTags)
			if !found || bestScore < d.threshold {
				continue
			}

			seen[key] = struct{}{}
			pairs = append(pairs, domain.SynergyPair{
				Key:            key,
				ForwardMatchID: match.ID,
				ReverseMatchID: domain.MatchID(reverseNeed.ID, bestCap.ID),
				ForwardNeedID:  need.ID,
				ReverseNeedID:  reverseNeed.ID,
				SynergyScore:   harmonicMean(match.Scores.Overall, bestScore),
			})
		}
	}
	return pairs
}

// bestReverse finds the requester capability that best fills the
// provider's need. Candidates are pre-sorted by ID, so ties resolve
// deterministically to the lowest ID.
func (d *SynergyDetector) bestReverse(
	reverseNeed *domain.Need,
	caps []domain.Capability,
	providerTags map[string]struct{},
) (domain.Capability, float64, bool) {
	var best domain.Capability
	bestScore := -1.0
	for i := range caps {
		detail, err := d.scorer.Score(reverseNeed, &caps[i], providerTags, nil)
		if err != nil {
			continue
		}
		if detail.Scores.Overall > bestScore {
			best = caps[i]
			bestScore = detail.Scores.Overall
		}
	}
	return best, bestScore, bestScore >= 0
}

// harmonicMean penalizes asymmetric pairs more than an arithmetic mean
// would.
func harmonicMean(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return 2 * a * b / (a + b)
}
