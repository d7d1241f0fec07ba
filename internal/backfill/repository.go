package backfill

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads guests lacking an invite code.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a backfill repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListGuestsMissingCode returns up to limit guests with id > after, ordered by id.
func (r *Repository) ListGuestsMissingCode(ctx context.Context, weddingID, after uuid.UUID, limit int) ([]GuestRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(email, '') FROM guests
		WHERE wedding_id = $1 AND invite_code IS NULL AND id > $2
		ORDER BY id
		LIMIT $3`, weddingID, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GuestRef
	for rows.Next() {
		var g GuestRef
		if err := rows.Scan(&g.ID, &g.Email); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
