package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/loomlabs/loom/internal/domain"
	"github.com/loomlabs/loom/internal/index"
)

const (
	// DefaultConfidenceCeiling caps confidence while a score bucket has
	// fewer than DefaultMinObservations reported outcomes, regardless of
	// how high the raw semantic score is.
	DefaultConfidenceCeiling = 0.7
	DefaultMinObservations   = 5
)

// Canonical feasibility signal names. Anything absent from the supplied
// signals defaults to a neutral 0.5.
const (
	SignalRegion       = "region"
	SignalTimezone     = "timezone"
	SignalAvailability = "availability"
)

var canonicalSignals = []string{SignalAvailability, SignalRegion, SignalTimezone}

// Weights is the scoring policy. The defaults are documented policy, not
// law: they load from configuration.
type Weights struct {
	Semantic        float64
	Complementarity float64
	Feasibility     float64
	Proficiency     float64
}

func DefaultWeights() Weights {
	return Weights{
		Semantic:        0.50,
		Complementarity: 0.25,
		Feasibility:     0.15,
		Proficiency:     0.10,
	}
}

func (w Weights) Validate() error {
	for _, v := range []float64{w.Semantic, w.Complementarity, w.Feasibility, w.Proficiency} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: component weight %.3f outside [0,1]", ErrInvalidWeights, v)
		}
	}
	sum := w.Semantic + w.Complementarity + w.Feasibility + w.Proficiency
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("%w: weights sum to %.3f, want 1.0", ErrInvalidWeights, sum)
	}
	return nil
}

// ScoreDetail carries the component scores plus the intermediate facts
// the provenance builder records verbatim.
type ScoreDetail struct {
	Scores domain.MatchScores

	SharedTags []string
	GapTags    []string
	FilledTags []string

	KnownSignals   []string
	NeutralSignals []string

	Bucket       int
	BucketDomain string
	Observations int
	SuccessRate  float64
	Capped       bool

	Weights Weights
}

// Scorer computes the component scores for one (need, capability) pair.
// It reads the most recently published calibration snapshot; it never
// blocks on the calibrator's write path.
type Scorer struct {
	weights         Weights
	ceiling         float64
	minObservations int
	calibration     func() *CalibrationSnapshot
}

func NewScorer(weights Weights, calibration func() *CalibrationSnapshot) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if calibration == nil {
		empty := EmptyCalibration()
		calibration = func() *CalibrationSnapshot { return empty }
	}
	return &Scorer{
		weights:         weights,
		ceiling:         DefaultConfidenceCeiling,
		minObservations: DefaultMinObservations,
		calibration:     calibration,
	}, nil
}

func (s *Scorer) Weights() Weights { return s.weights }

// Score computes all component scores for the pair. requesterTags is the
// union of the requester's own capability tag sets; signals are the
// externally supplied feasibility inputs. Scoring the same pair twice
// against the same calibration snapshot yields identical results.
func (s *Scorer) Score(need *domain.Need, capability *domain.Capability, requesterTags map[string]struct{}, signals domain.FeasibilitySignals) (*ScoreDetail, error) {
	if len(need.Embedding) == 0 {
		return nil, fmt.Errorf("%w: need %s", ErrMissingEmbedding, need.ID)
	}
	if len(capability.Embedding) == 0 {
		return nil, fmt.Errorf("%w: capability %s", ErrMissingEmbedding, capability.ID)
	}

	detail := &ScoreDetail{Weights: s.weights, BucketDomain: need.Domain}

	semantic := index.ClipUnit(index.Cosine(
		need.Embedding, capability.Embedding,
		index.Norm(need.Embedding), index.Norm(capability.Embedding)))

	needTags := need.TagSet()
	capTags := capability.TagSet()
	detail.SharedTags = sortedIntersection(needTags, capTags)

	complementarity := s.complementarity(needTags, capTags, requesterTags, detail)
	feasibility := s.feasibility(signals, detail)
	confidence := s.confidence(semantic, need.Domain, detail)

	overall := s.weights.Semantic*semantic +
		s.weights.Complementarity*complementarity +
		s.weights.Feasibility*feasibility +
		s.weights.Proficiency*capability.Proficiency

	detail.Scores = domain.MatchScores{
		Semantic:        semantic,
		Complementarity: complementarity,
		Feasibility:     feasibility,
		Confidence:      confidence,
		Overall:         clamp01(overall),
	}
	return detail, nil
}

// complementarity measures how much of the gap between the need's tags
// and the requester's own declared strengths this capability fills. A
// capability whose tags wholly overlap what the requester already has
// fills no gap and scores 0.
func (s *Scorer) complementarity(needTags, capTags, requesterTags map[string]struct{}, detail *ScoreDetail) float64 {
	gap := make(map[string]struct{})
	for t := range needTags {
		if _, own := requesterTags[t]; !own {
			gap[t] = struct{}{}
		}
	}
	detail.GapTags = sortedKeys(gap)
	if len(gap) == 0 {
		return 0
	}

	filled := 0
	for t := range gap {
		if _, ok := capTags[t]; ok {
			filled++
		}
	}
	detail.FilledTags = sortedIntersection(gap, capTags)
	return float64(filled) / float64(len(gap))
}

func (s *Scorer) feasibility(signals domain.FeasibilitySignals, detail *ScoreDetail) float64 {
	var sum float64
	for _, name := range canonicalSignals {
		v, ok := signals[name]
		if !ok {
			v = 0.5
			detail.NeutralSignals = append(detail.NeutralSignals, name)
		} else {
			detail.KnownSignals = append(detail.KnownSignals, name)
		}
		sum += clamp01(v)
	}
	return sum / float64(len(canonicalSignals))
}

// confidence starts from the semantic score and blends in the bucket's
// historical success rate. Sparse buckets discount the blend and cap the
// result below the ceiling.
func (s *Scorer) confidence(semantic float64, domainName string, detail *ScoreDetail) float64 {
	snap := s.calibration()
	bucket := SimilarityBucket(semantic)
	detail.Bucket = bucket

	stats, ok := snap.Lookup(bucket, domainName)
	if ok {
		detail.Observations = stats.Observations
		detail.SuccessRate = stats.SuccessRate()
	}

	if !ok || stats.Observations < s.minObservations {
		conf := semantic
		if conf > s.ceiling {
			conf = s.ceiling
			detail.Capped = true
		}
		return conf
	}

	weight := float64(stats.Observations) / float64(stats.Observations+s.minObservations)
	return clamp01((1-weight)*semantic + weight*stats.SuccessRate())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedIntersection(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
