package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/loomlabs/loom/internal/domain"
)

type NeedStore struct {
	db *pgxpool.Pool
}

func NewNeedStore(db *pgxpool.Pool) *NeedStore {
	return &NeedStore{db: db}
}

func (s *NeedStore) Create(ctx context.Context, n *domain.Need) error {
	var embedding *pgvector.Vector
	if len(n.Embedding) > 0 {
		v := pgvector.NewVector(n.Embedding)
		embedding = &v
	}

	// Needs are immutable once matched: resubmitting the same ID is a
	// no-op, never an update.
	_, err := s.db.Exec(ctx,
		`INSERT INTO needs (id, requester_id, kind, description, embedding, tags, domain, urgency, importance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		n.ID, n.RequesterID, n.Kind, n.Description, embedding, n.Tags, n.Domain, n.Urgency, n.Importance, n.CreatedAt,
	)
	return err
}

func (s *NeedStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Need, error) {
	n := &domain.Need{}
	var embedding pgvector.Vector

	err := s.db.QueryRow(ctx,
		`SELECT id, requester_id, kind, description, COALESCE(embedding, '[]'), tags, domain, urgency, importance, created_at
		 FROM needs WHERE id = $1`,
		id,
	).Scan(&n.ID, &n.RequesterID, &n.Kind, &n.Description, &embedding, &n.Tags, &n.Domain, &n.Urgency, &n.Importance, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	n.Embedding = embedding.Slice()
	return n, nil
}

// ListOpenByRequester returns the requester's needs that no completed
// match has closed yet.
func (s *NeedStore) ListOpenByRequester(ctx context.Context, requesterID uuid.UUID) ([]domain.Need, error) {
	rows, err := s.db.Query(ctx,
		`SELECT n.id, n.requester_id, n.kind, n.description, COALESCE(n.embedding, '[]'), n.tags, n.domain, n.urgency, n.importance, n.created_at
		 FROM needs n
		 WHERE n.requester_id = $1
		   AND NOT EXISTS (
			SELECT 1 FROM matches m WHERE m.need_id = n.id AND m.status = 'completed'
		   )
		 ORDER BY n.created_at`,
		requesterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Need
	for rows.Next() {
		var n domain.Need
		var embedding pgvector.Vector
		if err := rows.Scan(&n.ID, &n.RequesterID, &n.Kind, &n.Description, &embedding, &n.Tags, &n.Domain, &n.Urgency, &n.Importance, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Embedding = embedding.Slice()
		out = append(out, n)
	}
	return out, rows.Err()
}
