package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomlabs/loom/internal/domain"
)

// OutcomeStore persists reported outcomes and the append-only learning
// signal log. Signals carry a monotonically increasing sequence number
// assigned by the database, which is what makes calibration replay
// well-defined: readers page through the log strictly by sequence.
type OutcomeStore struct {
	db *pgxpool.Pool
}

func NewOutcomeStore(db *pgxpool.Pool) *OutcomeStore {
	return &OutcomeStore{db: db}
}

func (s *OutcomeStore) UpsertOutcome(ctx context.Context, o *domain.Outcome) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO outcomes (match_id, success, problem_solved, notes, reported_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (match_id) DO UPDATE SET
			success = EXCLUDED.success,
			problem_solved = EXCLUDED.problem_solved,
			notes = EXCLUDED.notes,
			reported_at = EXCLUDED.reported_at`,
		o.MatchID, o.Success, o.ProblemSolved, o.Notes, o.ReportedAt,
	)
	return err
}

func (s *OutcomeStore) GetOutcome(ctx context.Context, matchID uuid.UUID) (*domain.Outcome, error) {
	o := &domain.Outcome{}
	err := s.db.QueryRow(ctx,
		`SELECT match_id, success, problem_solved, notes, reported_at
		 FROM outcomes WHERE match_id = $1`,
		matchID,
	).Scan(&o.MatchID, &o.Success, &o.ProblemSolved, &o.Notes, &o.ReportedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// AppendSignal appends to the learning signal log and fills in the
// assigned sequence number. The log is append-only: amended outcomes
// append a fresh signal rather than rewriting history.
func (s *OutcomeStore) AppendSignal(ctx context.Context, sig *domain.LearningSignal) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO learning_signals (match_id, similarity_bucket, score_bucket, domain, tag_overlap, success, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING seq`,
		sig.MatchID, sig.SimilarityBucket, sig.ScoreBucket, sig.Domain, sig.TagOverlap, sig.Success, sig.RecordedAt,
	).Scan(&sig.Seq)
}

// ListSignalsFrom returns up to limit signals with seq strictly greater
// than the given sequence, in log order.
func (s *OutcomeStore) ListSignalsFrom(ctx context.Context, seq int64, limit int) ([]domain.LearningSignal, error) {
	rows, err := s.db.Query(ctx,
		`SELECT seq, match_id, similarity_bucket, score_bucket, domain, tag_overlap, success, recorded_at
		 FROM learning_signals WHERE seq > $1 ORDER BY seq LIMIT $2`,
		seq, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LearningSignal
	for rows.Next() {
		var sig domain.LearningSignal
		if err := rows.Scan(&sig.Seq, &sig.MatchID, &sig.SimilarityBucket, &sig.ScoreBucket, &sig.Domain, &sig.TagOverlap, &sig.Success, &sig.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}
