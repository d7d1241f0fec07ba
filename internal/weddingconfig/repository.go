package weddingconfig

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/database"
)

// Repository handles wedding_config persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a wedding config repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRows returns all stored keys for a wedding.
func (r *Repository) ListRows(ctx context.Context, weddingID uuid.UUID) ([]models.ConfigRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM wedding_config WHERE wedding_id = $1`, weddingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ConfigRow
	for rows.Next() {
		var row models.ConfigRow
		if err := rows.Scan(&row.Key, &row.Value); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

// Apply upserts set and deletes del in one transaction.
func (r *Repository) Apply(ctx context.Context, weddingID uuid.UUID, set map[string]string, del []string) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const upsert = `INSERT INTO wedding_config (wedding_id, key, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (wedding_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
		for k, v := range set {
			if _, err := tx.Exec(ctx, upsert, weddingID, k, v); err != nil {
				return err
			}
		}
		if len(del) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM wedding_config WHERE wedding_id = $1 AND key = ANY($2)`, weddingID, del); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAll removes every key for a wedding.
func (r *Repository) DeleteAll(ctx context.Context, weddingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM wedding_config WHERE wedding_id = $1`, weddingID)
	return err
}
