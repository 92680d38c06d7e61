package service

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/internal/domain"
)

const scoreEpsilon = 1e-9

func testNeed(tags []string, dom string) *domain.Need {
	return &domain.Need{
		ID:          uuid.New(),
		RequesterID: uuid.New(),
		Kind:        domain.KindSkill,
		Embedding:   []float32{1, 0},
		Tags:        tags,
		Domain:      dom,
		Urgency:     0.5,
		Importance:  0.5,
	}
}

func testCap(tags []string, dom string, proficiency float64, embedding []float32) *domain.Capability {
	return &domain.Capability{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Kind:        domain.KindSkill,
		Name:        "test",
		Embedding:   embedding,
		Proficiency: proficiency,
		Tags:        tags,
		Domain:      dom,
	}
}

func mustScorer(t *testing.T, calibration func() *CalibrationSnapshot) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights(), calibration)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// The documented weighting: semantic 0.89, complementarity 0.78,
// feasibility 0.75, proficiency 0.92 must combine to 0.8445 under the
// default 0.50/0.25/0.15/0.10 policy.
func TestWeights_DocumentedScenario(t *testing.T) {
	w := DefaultWeights()
	overall := w.Semantic*0.89 + w.Complementarity*0.78 + w.Feasibility*0.75 + w.Proficiency*0.92
	if math.Abs(overall-0.8445) > scoreEpsilon {
		t.Errorf("expected overall 0.8445, got %.10f", overall)
	}
}

func TestWeights_Validate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("default weights should validate: %v", err)
	}

	bad := Weights{Semantic: 0.9, Complementarity: 0.9, Feasibility: 0.1, Proficiency: 0.1}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights for sum > 1, got %v", err)
	}

	negative := Weights{Semantic: -0.2, Complementarity: 0.6, Feasibility: 0.3, Proficiency: 0.3}
	if err := negative.Validate(); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights for negative weight, got %v", err)
	}
}

func TestScorer_MissingEmbedding(t *testing.T) {
	s := mustScorer(t, nil)

	need := testNeed([]string{"hardware"}, "robotics")
	need.Embedding = nil
	cap := testCap([]string{"hardware"}, "robotics", 0.9, []float32{1, 0})

	if _, err := s.Score(need, cap, nil, nil); !errors.Is(err, ErrMissingEmbedding) {
		t.Errorf("expected ErrMissingEmbedding for need, got %v", err)
	}

	need.Embedding = []float32{1, 0}
	cap.Embedding = nil
	if _, err := s.Score(need, cap, nil, nil); !errors.Is(err, ErrMissingEmbedding) {
		t.Errorf("expected ErrMissingEmbedding for capability, got %v", err)
	}
}

func TestScorer_ScoreBounds(t *testing.T) {
	s := mustScorer(t, nil)

	need := testNeed([]string{"hardware", "sensors"}, "robotics")
	cap := testCap([]string{"hardware", "pcb"}, "robotics", 0.92, []float32{1, 0})

	detail, err := s.Score(need, cap, nil, domain.FeasibilitySignals{
		SignalRegion: 0.75, SignalTimezone: 0.75, SignalAvailability: 0.75,
	})
	if err != nil {
		t.Fatal(err)
	}

	scores := []float64{
		detail.Scores.Semantic,
		detail.Scores.Complementarity,
		detail.Scores.Feasibility,
		detail.Scores.Confidence,
		detail.Scores.Overall,
	}
	for i, v := range scores {
		if v < 0 || v > 1 {
			t.Errorf("score %d = %f outside [0,1]", i, v)
		}
	}
}

// A capability whose tags the requester already covers fills no gap: it
// must score ~0 complementarity even at perfect semantic similarity, and
// rank below a genuinely complementary candidate with the same
// embedding.
func TestScorer_RedundantCapabilityScoresLow(t *testing.T) {
	s := mustScorer(t, nil)

	need := testNeed([]string{"hardware", "sensors"}, "robotics")
	requesterTags := map[string]struct{}{
		"hardware": {}, "sensors": {}, "domain:robotics": {},
	}

	duplicate := testCap([]string{"hardware", "sensors"}, "robotics", 0.9, []float32{1, 0})
	complementary := testCap([]string{"hardware", "sensors"}, "robotics", 0.9, []float32{1, 0})

	dupDetail, err := s.Score(need, duplicate, requesterTags, nil)
	if err != nil {
		t.Fatal(err)
	}
	if dupDetail.Scores.Complementarity != 0 {
		t.Errorf("fully covered need should yield complementarity 0, got %f", dupDetail.Scores.Complementarity)
	}

	// Same candidate against a requester who lacks the tags entirely.
	compDetail, err := s.Score(need, complementary, map[string]struct{}{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if compDetail.Scores.Complementarity <= dupDetail.Scores.Complementarity {
		t.Error("gap-filling capability should out-score the redundant one")
	}
	if compDetail.Scores.Overall <= dupDetail.Scores.Overall {
		t.Error("equal semantic score: the complementary match must rank higher overall")
	}
}

func TestScorer_FeasibilityDefaultsNeutral(t *testing.T) {
	s := mustScorer(t, nil)

	need := testNeed([]string{"hardware"}, "robotics")
	cap := testCap([]string{"hardware"}, "robotics", 0.5, []float32{1, 0})

	detail, err := s.Score(need, cap, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(detail.Scores.Feasibility-0.5) > scoreEpsilon {
		t.Errorf("all-absent signals should score neutral 0.5, got %f", detail.Scores.Feasibility)
	}
	if len(detail.NeutralSignals) != 3 {
		t.Errorf("expected 3 neutral defaults, got %v", detail.NeutralSignals)
	}
}

// With zero prior outcomes for a bucket, confidence never exceeds the
// sparsity ceiling, even at semantic similarity 1.0.
func TestScorer_SparsityCeiling(t *testing.T) {
	s := mustScorer(t, nil)

	need := testNeed([]string{"hardware"}, "robotics")
	cap := testCap([]string{"hardware"}, "robotics", 1.0, []float32{1, 0})

	detail, err := s.Score(need, cap, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Scores.Semantic < 1.0-scoreEpsilon {
		t.Fatalf("identical embeddings should score semantic 1.0, got %f", detail.Scores.Semantic)
	}
	if detail.Scores.Confidence > DefaultConfidenceCeiling {
		t.Errorf("confidence %f exceeds sparsity ceiling %f with no history",
			detail.Scores.Confidence, DefaultConfidenceCeiling)
	}
	if !detail.Capped {
		t.Error("expected the ceiling cap to be recorded")
	}
}

func TestScorer_CalibratedConfidenceUsesSuccessRate(t *testing.T) {
	snap := EmptyCalibration()
	signals := make([]domain.LearningSignal, 0, 20)
	for i := 0; i < 20; i++ {
		signals = append(signals, domain.LearningSignal{
			Seq:              int64(i + 1),
			MatchID:          uuid.New(),
			SimilarityBucket: SimilarityBucket(1.0),
			Domain:           "robotics",
			Success:          i < 18, // 90% success
		})
	}
	snap = snap.fold(signals)

	s := mustScorer(t, func() *CalibrationSnapshot { return snap })

	need := testNeed([]string{"hardware"}, "robotics")
	cap := testCap([]string{"hardware"}, "robotics", 1.0, []float32{1, 0})

	detail, err := s.Score(need, cap, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Observations != 20 {
		t.Errorf("expected 20 observations, got %d", detail.Observations)
	}
	if detail.Scores.Confidence <= DefaultConfidenceCeiling {
		t.Errorf("well-observed 90%% bucket should lift confidence past the ceiling, got %f",
			detail.Scores.Confidence)
	}
	if detail.Capped {
		t.Error("calibrated confidence should not be capped")
	}
}

func TestScorer_DeterministicForSameSnapshot(t *testing.T) {
	s := mustScorer(t, nil)

	need := testNeed([]string{"hardware", "sensors"}, "robotics")
	cap := testCap([]string{"hardware", "pcb"}, "robotics", 0.92, []float32{0.8, 0.6})

	first, err := s.Score(need, cap, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Score(need, cap, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Scores != second.Scores {
		t.Errorf("scoring the same pair twice diverged: %+v vs %+v", first.Scores, second.Scores)
	}
}
