package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loomlabs/loom/internal/domain"
	"github.com/loomlabs/loom/internal/index"
)

type matcherFixture struct {
	idx     *index.Index
	needs   *memNeedStore
	matches *memMatchStore
	svc     *MatchService
}

func newMatcherFixture(t *testing.T, cfg MatchConfig) *matcherFixture {
	t.Helper()
	idx := index.New(2, zap.NewNop())
	needs := newMemNeedStore()
	matches := newMemMatchStore()
	scorer := mustScorer(t, nil)
	svc := NewMatchService(idx, scorer, nil, needs, matches, cfg, zap.NewNop())
	return &matcherFixture{idx: idx, needs: needs, matches: matches, svc: svc}
}

func (f *matcherFixture) addCap(t *testing.T, owner uuid.UUID, tags []string, proficiency float64, embedding []float32) domain.Capability {
	t.Helper()
	c := domain.Capability{
		ID:          uuid.New(),
		OwnerID:     owner,
		Kind:        domain.KindSkill,
		Name:        "cap",
		Embedding:   embedding,
		Proficiency: proficiency,
		Tags:        tags,
		Domain:      "robotics",
	}
	if err := f.idx.Upsert(c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMatchService_RanksByOverallDescending(t *testing.T) {
	f := newMatcherFixture(t, DefaultMatchConfig())

	provider := uuid.New()
	f.addCap(t, provider, []string{"hardware"}, 0.95, []float32{1, 0})
	f.addCap(t, provider, []string{"hardware"}, 0.40, []float32{0.9, 0.44})
	f.addCap(t, uuid.New(), []string{"hardware", "sensors"}, 0.80, []float32{0.95, 0.31})

	need := testNeed([]string{"hardware", "sensors"}, "robotics")
	result, err := f.svc.SubmitNeed(context.Background(), need, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Matches)
	assert.False(t, result.Partial)

	for i := 1; i < len(result.Matches); i++ {
		assert.GreaterOrEqual(t,
			result.Matches[i-1].Scores.Overall, result.Matches[i].Scores.Overall,
			"ranking must be non-increasing in overall score")
	}
	for _, m := range result.Matches {
		assert.Equal(t, domain.MatchProposed, m.Status)
		assert.Equal(t, domain.MatchID(need.ID, m.CapabilityID), m.ID)
		assert.Len(t, m.Provenance.Steps, 5)
	}
}

// Submitting the same need twice against an unchanged index and the same
// calibration snapshot must reproduce the scores and a byte-identical
// provenance trail.
func TestMatchService_Deterministic(t *testing.T) {
	f := newMatcherFixture(t, DefaultMatchConfig())

	for i := 0; i < 8; i++ {
		f.addCap(t, uuid.New(), []string{"hardware", "pcb"}, 0.5+float64(i)*0.05,
			[]float32{1, float32(i) * 0.1})
	}

	need := testNeed([]string{"hardware", "sensors"}, "robotics")

	first, err := f.svc.SubmitNeed(context.Background(), need, nil, nil)
	require.NoError(t, err)
	second, err := f.svc.SubmitNeed(context.Background(), need, nil, nil)
	require.NoError(t, err)

	require.Equal(t, len(first.Matches), len(second.Matches))
	for i := range first.Matches {
		assert.Equal(t, first.Matches[i].ID, second.Matches[i].ID)
		assert.Equal(t, first.Matches[i].Scores, second.Matches[i].Scores)

		a, err := json.Marshal(first.Matches[i].Provenance)
		require.NoError(t, err)
		b, err := json.Marshal(second.Matches[i].Provenance)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), "provenance must replay byte-identically")
	}
}

func TestMatchService_ExcludesSelfMatches(t *testing.T) {
	f := newMatcherFixture(t, DefaultMatchConfig())

	need := testNeed([]string{"hardware"}, "robotics")
	own := f.addCap(t, need.RequesterID, []string{"hardware"}, 0.99, []float32{1, 0})
	other := f.addCap(t, uuid.New(), []string{"hardware"}, 0.80, []float32{1, 0})

	result, err := f.svc.SubmitNeed(context.Background(), need, nil, nil)
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, other.ID, result.Matches[0].CapabilityID)
	assert.NotEqual(t, own.ID, result.Matches[0].CapabilityID)
}

func TestMatchService_FiltersBelowMinOverall(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.MinOverall = 0.99 // nothing can reach this
	f := newMatcherFixture(t, cfg)

	f.addCap(t, uuid.New(), []string{"hardware"}, 0.9, []float32{1, 0})

	need := testNeed([]string{"hardware"}, "robotics")
	result, err := f.svc.SubmitNeed(context.Background(), need, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestMatchService_TrimsToTopK(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.TopK = 2
	f := newMatcherFixture(t, cfg)

	for i := 0; i < 5; i++ {
		f.addCap(t, uuid.New(), []string{"hardware"}, 0.9, []float32{1, 0})
	}

	need := testNeed([]string{"hardware"}, "robotics")
	result, err := f.svc.SubmitNeed(context.Background(), need, nil, nil)
	require.NoError(t, err)
	assert.Len(t, result.Matches, 2)
}

func TestMatchService_RejectsNeedWithoutEmbedding(t *testing.T) {
	f := newMatcherFixture(t, DefaultMatchConfig())

	need := testNeed([]string{"hardware"}, "robotics")
	need.Embedding = nil

	_, err := f.svc.SubmitNeed(context.Background(), need, nil, nil)
	assert.ErrorIs(t, err, ErrMissingEmbedding)
}

func TestMatchService_AttachesAlternativesToTopMatchOnly(t *testing.T) {
	f := newMatcherFixture(t, DefaultMatchConfig())

	for i := 0; i < 6; i++ {
		f.addCap(t, uuid.New(), []string{"hardware"}, 0.5+float64(i)*0.08, []float32{1, 0})
	}

	need := testNeed([]string{"hardware"}, "robotics")
	result, err := f.svc.SubmitNeed(context.Background(), need, nil, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Matches), 4)

	top := result.Matches[0]
	lastStep := top.Provenance.Steps[len(top.Provenance.Steps)-1]
	require.NotEmpty(t, lastStep.Alternatives)
	assert.LessOrEqual(t, len(lastStep.Alternatives), DefaultMaxAlternatives)
	for _, alt := range lastStep.Alternatives {
		assert.LessOrEqual(t, alt.Overall, top.Scores.Overall)
		assert.NotEqual(t, top.CapabilityID, alt.CapabilityID)
	}

	for _, m := range result.Matches[1:] {
		for _, step := range m.Provenance.Steps {
			assert.Empty(t, step.Alternatives)
		}
	}
}

func TestMatchService_PersistsNeedAndMatches(t *testing.T) {
	f := newMatcherFixture(t, DefaultMatchConfig())

	f.addCap(t, uuid.New(), []string{"hardware"}, 0.9, []float32{1, 0})

	need := testNeed([]string{"hardware"}, "robotics")
	result, err := f.svc.SubmitNeed(context.Background(), need, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)

	stored, err := f.needs.GetByID(context.Background(), need.ID)
	require.NoError(t, err)
	assert.Equal(t, need.ID, stored.ID)

	match, err := f.matches.GetByID(context.Background(), result.Matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, result.Matches[0].Scores, match.Scores)
}

func TestShardCandidates_CoversAllWithoutOverlap(t *testing.T) {
	candidates := make([]index.Candidate, 10)
	for i := range candidates {
		candidates[i].Capability.ID = uuid.New()
	}

	shards := shardCandidates(candidates, 4)

	seen := make(map[uuid.UUID]int)
	for _, shard := range shards {
		for _, c := range shard {
			seen[c.Capability.ID]++
		}
	}
	require.Len(t, seen, len(candidates))
	for id, n := range seen {
		assert.Equal(t, 1, n, "candidate %s appears in %d shards", id, n)
	}
}
