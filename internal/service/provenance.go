package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loomlabs/loom/internal/domain"
)

// Per-step confidence is fixed per operation: it reflects how much trust
// the method itself deserves, not the inputs of a particular request.
const (
	confSemanticStep    = 0.90
	confComplementStep  = 0.70
	confFeasibilityStep = 0.75
	confCalibrated      = 0.60
	confUncalibrated    = 0.30
	confAggregationStep = 0.85
)

// ProvenanceBuilder renders a score detail into the fixed five-step
// reasoning trail. Building twice from the same detail produces a
// byte-identical trail: all values are formatted with fixed precision
// and all sets are emitted in sorted order.
type ProvenanceBuilder struct{}

func NewProvenanceBuilder() *ProvenanceBuilder {
	return &ProvenanceBuilder{}
}

func (b *ProvenanceBuilder) Build(need *domain.Need, capability *domain.Capability, d *ScoreDetail) domain.ProvenanceTrail {
	var trail domain.ProvenanceTrail
	trail.AddStep(b.semanticStep(need, capability, d))
	trail.AddStep(b.complementarityStep(d))
	trail.AddStep(b.feasibilityStep(d))
	trail.AddStep(b.calibrationStep(d))
	trail.AddStep(b.aggregationStep(capability, d))
	return trail
}

// AttachAlternatives records the next-best candidates on the top-ranked
// match's final step, with the reason each scored lower.
func (b *ProvenanceBuilder) AttachAlternatives(trail *domain.ProvenanceTrail, alts []domain.Alternative) {
	if len(trail.Steps) == 0 || len(alts) == 0 {
		return
	}
	last := len(trail.Steps) - 1
	trail.Steps[last].Alternatives = append(trail.Steps[last].Alternatives, alts...)
}

func (b *ProvenanceBuilder) semanticStep(need *domain.Need, capability *domain.Capability, d *ScoreDetail) domain.ProvenanceStep {
	step := domain.ProvenanceStep{
		Operation: domain.OpSemanticSimilarity,
		Inputs: []domain.Field{
			{Key: "need_id", Value: need.ID.String()},
			{Key: "capability_id", Value: capability.ID.String()},
		},
		Outputs:    []domain.Field{{Key: "score", Value: fmtScore(d.Scores.Semantic)}},
		Rationale:  "cosine similarity between the need and capability embeddings, clipped to [0,1]",
		Confidence: confSemanticStep,
	}
	if len(d.SharedTags) > 0 {
		step.Evidence = append(step.Evidence, "shared tags: "+tagSet(d.SharedTags))
	}
	return step
}

func (b *ProvenanceBuilder) complementarityStep(d *ScoreDetail) domain.ProvenanceStep {
	step := domain.ProvenanceStep{
		Operation: domain.OpComplementarity,
		Inputs: []domain.Field{
			{Key: "gap_size", Value: strconv.Itoa(len(d.GapTags))},
			{Key: "filled", Value: strconv.Itoa(len(d.FilledTags))},
		},
		Outputs:    []domain.Field{{Key: "score", Value: fmtScore(d.Scores.Complementarity)}},
		Rationale:  "share of the gap between the need's tags and the requester's own strengths that this capability fills",
		Confidence: confComplementStep,
	}
	switch {
	case len(d.GapTags) == 0:
		step.Evidence = append(step.Evidence, "no gap: the requester already covers every required tag")
	case len(d.FilledTags) == 0:
		step.Evidence = append(step.Evidence, "gap tags "+tagSet(d.GapTags)+" left unfilled")
	default:
		step.Evidence = append(step.Evidence, "fills gap tags: "+tagSet(d.FilledTags))
	}
	return step
}

func (b *ProvenanceBuilder) feasibilityStep(d *ScoreDetail) domain.ProvenanceStep {
	step := domain.ProvenanceStep{
		Operation:  domain.OpFeasibility,
		Outputs:    []domain.Field{{Key: "score", Value: fmtScore(d.Scores.Feasibility)}},
		Rationale:  "mean of the supplied compatibility signals; absent signals count as neutral 0.5",
		Confidence: confFeasibilityStep,
	}
	if len(d.KnownSignals) > 0 {
		step.Evidence = append(step.Evidence, "supplied signals: "+strings.Join(d.KnownSignals, ", "))
	}
	if len(d.NeutralSignals) > 0 {
		step.Evidence = append(step.Evidence, "neutral defaults: "+strings.Join(d.NeutralSignals, ", "))
	}
	return step
}

func (b *ProvenanceBuilder) calibrationStep(d *ScoreDetail) domain.ProvenanceStep {
	confidence := confUncalibrated
	rationale := "no calibrated history for this bucket; confidence capped by the sparsity ceiling"
	if d.Observations > 0 {
		confidence = confCalibrated
		rationale = fmt.Sprintf("blended semantic score with the historical success rate over %d observed outcomes", d.Observations)
	}
	step := domain.ProvenanceStep{
		Operation: domain.OpCalibrationLookup,
		Inputs: []domain.Field{
			{Key: "similarity_bucket", Value: strconv.Itoa(d.Bucket)},
			{Key: "domain", Value: d.BucketDomain},
		},
		Outputs: []domain.Field{
			{Key: "observations", Value: strconv.Itoa(d.Observations)},
			{Key: "success_rate", Value: fmtScore(d.SuccessRate)},
			{Key: "confidence", Value: fmtScore(d.Scores.Confidence)},
			{Key: "capped", Value: strconv.FormatBool(d.Capped)},
		},
		Rationale:  rationale,
		Confidence: confidence,
	}
	return step
}

func (b *ProvenanceBuilder) aggregationStep(capability *domain.Capability, d *ScoreDetail) domain.ProvenanceStep {
	w := d.Weights
	return domain.ProvenanceStep{
		Operation: domain.OpOverallAggregation,
		Inputs: []domain.Field{
			{Key: "weight_semantic", Value: fmtScore(w.Semantic)},
			{Key: "weight_complementarity", Value: fmtScore(w.Complementarity)},
			{Key: "weight_feasibility", Value: fmtScore(w.Feasibility)},
			{Key: "weight_proficiency", Value: fmtScore(w.Proficiency)},
			{Key: "proficiency", Value: fmtScore(capability.Proficiency)},
		},
		Outputs:    []domain.Field{{Key: "overall", Value: fmtScore(d.Scores.Overall)}},
		Rationale:  "weighted sum of semantic, complementarity and feasibility scores plus the provider's proficiency",
		Confidence: confAggregationStep,
	}
}

func fmtScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func tagSet(tags []string) string {
	return "{" + strings.Join(tags, ", ") + "}"
}
