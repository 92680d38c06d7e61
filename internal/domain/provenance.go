package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Operations appear in every trail in this fixed order.
const (
	OpSemanticSimilarity = "semantic_similarity"
	OpComplementarity    = "complementarity_analysis"
	OpFeasibility        = "feasibility_assessment"
	OpCalibrationLookup  = "calibration_lookup"
	OpOverallAggregation = "overall_aggregation"
)

// Field is an ordered key/value pair. Inputs and outputs are recorded as
// field lists rather than maps so a trail serializes identically on
// every replay.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Alternative is a next-best candidate that was considered and why it
// scored lower. Only the top-ranked match carries alternatives.
type Alternative struct {
	CapabilityID uuid.UUID `json:"capability_id"`
	Overall      float64   `json:"overall"`
	Reason       string    `json:"reason"`
}

type ProvenanceStep struct {
	Operation    string        `json:"operation"`
	Inputs       []Field       `json:"inputs,omitempty"`
	Outputs      []Field       `json:"outputs"`
	Rationale    string        `json:"rationale"`
	Confidence   float64       `json:"confidence"`
	Evidence     []string      `json:"evidence,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

// ProvenanceTrail is the ordered, append-only reasoning record behind a
// match's scores. It is always linear: one step per scorer
// sub-computation, never a branching graph.
type ProvenanceTrail struct {
	Steps []ProvenanceStep `json:"steps"`
}

func (t *ProvenanceTrail) AddStep(step ProvenanceStep) {
	t.Steps = append(t.Steps, step)
}

// Summary renders a human-readable account of the reasoning.
func (t *ProvenanceTrail) Summary() string {
	var b strings.Builder
	for i, step := range t.Steps {
		fmt.Fprintf(&b, "%d. %s (confidence %.2f)\n", i+1, step.Operation, step.Confidence)
		if step.Rationale != "" {
			fmt.Fprintf(&b, "   %s\n", step.Rationale)
		}
		for _, e := range step.Evidence {
			fmt.Fprintf(&b, "   evidence: %s\n", e)
		}
	}
	return b.String()
}
