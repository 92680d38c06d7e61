package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomlabs/loom/internal/domain"
)

// OutcomeService records externally driven match transitions and turns
// reported outcomes into learning signals for the calibrator. Reporting
// is fire-and-forget with respect to serving latency: the signal goes
// through the calibrator's queue, never through the serving path.
type OutcomeService struct {
	matches      domain.MatchStore
	outcomes     domain.OutcomeStore
	needs        domain.NeedStore
	capabilities domain.CapabilityStore
	calibrator   *CalibratorService
	logger       *zap.Logger
}

func NewOutcomeService(
	matches domain.MatchStore,
	outcomes domain.OutcomeStore,
	needs domain.NeedStore,
	capabilities domain.CapabilityStore,
	calibrator *CalibratorService,
	logger *zap.Logger,
) *OutcomeService {
	return &OutcomeService{
		matches:      matches,
		outcomes:     outcomes,
		needs:        needs,
		capabilities: capabilities,
		calibrator:   calibrator,
		logger:       logger,
	}
}

// TransitionMatch records an accepted/rejected/completed transition
// applied by the requesting layer. The state machine is enforced here;
// the engine itself only ever originates proposed matches.
func (s *OutcomeService) TransitionMatch(ctx context.Context, matchID uuid.UUID, to domain.MatchStatus) error {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	if !match.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, match.Status, to)
	}
	return s.matches.UpdateStatus(ctx, matchID, to)
}

// ReportOutcome stores the outcome for an accepted match, records the
// accepted -> completed transition, and hands a derived learning signal
// to the calibrator asynchronously. Reporting again amends the stored
// outcome rather than duplicating it.
func (s *OutcomeService) ReportOutcome(ctx context.Context, matchID uuid.UUID, outcome domain.Outcome) error {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}

	switch match.Status {
	case domain.MatchAccepted:
		if err := s.matches.UpdateStatus(ctx, matchID, domain.MatchCompleted); err != nil {
			return fmt.Errorf("complete match: %w", err)
		}
	case domain.MatchCompleted:
		// Amending an earlier report.
	default:
		return fmt.Errorf("%w: status %s", ErrMatchNotOpen, match.Status)
	}

	outcome.MatchID = matchID
	if outcome.ReportedAt.IsZero() {
		outcome.ReportedAt = time.Now().UTC()
	}
	if err := s.outcomes.UpsertOutcome(ctx, &outcome); err != nil {
		return fmt.Errorf("persist outcome: %w", err)
	}

	s.calibrator.Enqueue(s.deriveSignal(ctx, match, &outcome))
	return nil
}

// deriveSignal builds the calibration feature vector from the match's
// stored scores. Lookups that fail degrade the signal, not the report.
func (s *OutcomeService) deriveSignal(ctx context.Context, match *domain.Match, outcome *domain.Outcome) domain.LearningSignal {
	sig := domain.LearningSignal{
		MatchID:          match.ID,
		SimilarityBucket: SimilarityBucket(match.Scores.Semantic),
		ScoreBucket:      SimilarityBucket(match.Scores.Overall),
		Success:          outcome.Success,
		RecordedAt:       outcome.ReportedAt,
	}

	need, err := s.needs.GetByID(ctx, match.NeedID)
	if err != nil {
		s.logger.Warn("learning signal without need context",
			zap.String("need_id", match.NeedID.String()),
			zap.Error(err))
		return sig
	}
	sig.Domain = need.Domain

	capability, err := s.capabilities.GetByID(ctx, match.CapabilityID)
	if err != nil {
		s.logger.Warn("learning signal without capability context",
			zap.String("capability_id", match.CapabilityID.String()),
			zap.Error(err))
		return sig
	}

	needTags := need.TagSet()
	for t := range capability.TagSet() {
		if _, ok := needTags[t]; ok {
			sig.TagOverlap++
		}
	}
	return sig
}
