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

type CapabilityStore struct {
	db *pgxpool.Pool
}

func NewCapabilityStore(db *pgxpool.Pool) *CapabilityStore {
	return &CapabilityStore{db: db}
}

func (s *CapabilityStore) Upsert(ctx context.Context, c *domain.Capability) error {
	var embedding *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO capabilities (id, owner_id, kind, name, description, embedding, proficiency, tags, domain, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			embedding = EXCLUDED.embedding,
			proficiency = EXCLUDED.proficiency,
			tags = EXCLUDED.tags,
			domain = EXCLUDED.domain,
			updated_at = EXCLUDED.updated_at
		 RETURNING created_at, updated_at`,
		c.ID, c.OwnerID, c.Kind, c.Name, c.Description, embedding, c.Proficiency, c.Tags, c.Domain, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *CapabilityStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Capability, error) {
	c := &domain.Capability{}
	var embedding pgvector.Vector

	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, kind, name, description, COALESCE(embedding, '[]'), proficiency, tags, domain, created_at, updated_at
		 FROM capabilities WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.OwnerID, &c.Kind, &c.Name, &c.Description, &embedding, &c.Proficiency, &c.Tags, &c.Domain, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Embedding = embedding.Slice()
	return c, nil
}

func (s *CapabilityStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Capability, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, kind, name, description, COALESCE(embedding, '[]'), proficiency, tags, domain, created_at, updated_at
		 FROM capabilities WHERE owner_id = $1 ORDER BY created_at`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCapabilities(rows)
}

func (s *CapabilityStore) ListAll(ctx context.Context) ([]domain.Capability, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, kind, name, description, COALESCE(embedding, '[]'), proficiency, tags, domain, created_at, updated_at
		 FROM capabilities ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCapabilities(rows)
}

func (s *CapabilityStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM capabilities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCapabilities(rows pgx.Rows) ([]domain.Capability, error) {
	var out []domain.Capability
	for rows.Next() {
		var c domain.Capability
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Kind, &c.Name, &c.Description, &embedding, &c.Proficiency, &c.Tags, &c.Domain, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		out = append(out, c)
	}
	return out, rows.Err()
}
