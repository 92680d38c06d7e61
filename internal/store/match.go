package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomlabs/loom/internal/domain"
)

type MatchStore struct {
	db *pgxpool.Pool
}

func NewMatchStore(db *pgxpool.Pool) *MatchStore {
	return &MatchStore{db: db}
}

// Create inserts the match with its full provenance trail. Match IDs are
// deterministic per (need, capability) pair, so replaying a submission
// rewrites the same row instead of growing a duplicate.
func (s *MatchStore) Create(ctx context.Context, m *domain.Match) error {
	provenanceJSON, err := json.Marshal(m.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO matches (
			id, need_id, requester_id, capability_id, provider_id,
			semantic_score, complementarity_score, feasibility_score, confidence_score, overall_score,
			status, provenance, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			semantic_score = EXCLUDED.semantic_score,
			complementarity_score = EXCLUDED.complementarity_score,
			feasibility_score = EXCLUDED.feasibility_score,
			confidence_score = EXCLUDED.confidence_score,
			overall_score = EXCLUDED.overall_score,
			provenance = EXCLUDED.provenance`,
		m.ID, m.NeedID, m.RequesterID, m.CapabilityID, m.ProviderID,
		m.Scores.Semantic, m.Scores.Complementarity, m.Scores.Feasibility, m.Scores.Confidence, m.Scores.Overall,
		m.Status, provenanceJSON, m.CreatedAt,
	)
	return err
}

func (s *MatchStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	m := &domain.Match{}
	var provenanceJSON []byte

	err := s.db.QueryRow(ctx,
		`SELECT id, need_id, requester_id, capability_id, provider_id,
			semantic_score, complementarity_score, feasibility_score, confidence_score, overall_score,
			status, provenance, created_at
		 FROM matches WHERE id = $1`,
		id,
	).Scan(
		&m.ID, &m.NeedID, &m.RequesterID, &m.CapabilityID, &m.ProviderID,
		&m.Scores.Semantic, &m.Scores.Complementarity, &m.Scores.Feasibility, &m.Scores.Confidence, &m.Scores.Overall,
		&m.Status, &provenanceJSON, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(provenanceJSON) > 0 {
		if err := json.Unmarshal(provenanceJSON, &m.Provenance); err != nil {
			return nil, fmt.Errorf("unmarshal provenance: %w", err)
		}
	}
	return m, nil
}

func (s *MatchStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MatchStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE matches SET status = $2 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MatchStore) ListByNeed(ctx context.Context, needID uuid.UUID) ([]domain.Match, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, need_id, requester_id, capability_id, provider_id,
			semantic_score, complementarity_score, feasibility_score, confidence_score, overall_score,
			status, provenance, created_at
		 FROM matches WHERE need_id = $1 ORDER BY overall_score DESC, id`,
		needID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		var m domain.Match
		var provenanceJSON []byte
		if err := rows.Scan(
			&m.ID, &m.NeedID, &m.RequesterID, &m.CapabilityID, &m.ProviderID,
			&m.Scores.Semantic, &m.Scores.Complementarity, &m.Scores.Feasibility, &m.Scores.Confidence, &m.Scores.Overall,
			&m.Status, &provenanceJSON, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(provenanceJSON) > 0 {
			if err := json.Unmarshal(provenanceJSON, &m.Provenance); err != nil {
				return nil, fmt.Errorf("unmarshal provenance: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
