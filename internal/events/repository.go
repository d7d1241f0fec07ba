package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermore-events/backend/internal/models"
)

// Repository handles wedding events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	return r.pool.QueryRow(ctx, `INSERT INTO events (wedding_id, name, venue, starts_at)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		e.WeddingID, e.Name, e.Venue, e.StartsAt).Scan(&e.ID, &e.CreatedAt)
}

// List returns the wedding's events in schedule order.
func (r *Repository) List(ctx context.Context, weddingID uuid.UUID) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, wedding_id, name, venue, starts_at, created_at
		FROM events WHERE wedding_id = $1
		ORDER BY starts_at NULLS LAST, created_at`, weddingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.WeddingID, &e.Name, &e.Venue, &e.StartsAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
