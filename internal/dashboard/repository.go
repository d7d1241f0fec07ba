package dashboard

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the dashboard aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a dashboard repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EventCounts returns per-event RSVP status counts and the accepted headcount.
func (r *Repository) EventCounts(ctx context.Context, weddingID uuid.UUID) ([]EventSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.name,
			COUNT(ie.id) FILTER (WHERE ie.status = 'pending'),
			COUNT(ie.id) FILTER (WHERE ie.status = 'accepted'),
			COUNT(ie.id) FILTER (WHERE ie.status = 'declined'),
			COUNT(ie.id) FILTER (WHERE ie.status = 'waitlist'),
			COALESCE(SUM(ie.headcount) FILTER (WHERE ie.status = 'accepted'), 0)
		FROM events e
		LEFT JOIN invitation_events ie ON ie.event_id = e.id AND ie.wedding_id = e.wedding_id
		WHERE e.wedding_id = $1
		GROUP BY e.id, e.name, e.starts_at
		ORDER BY e.starts_at NULLS LAST, e.name`, weddingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []EventSummary{}
	for rows.Next() {
		var s EventSummary
		if err := rows.Scan(&s.EventID, &s.Name, &s.Pending, &s.Accepted, &s.Declined, &s.Waitlist, &s.AttendingHeadcount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Totals counts guests, invitations and guests still missing an invite code.
func (r *Repository) Totals(ctx context.Context, weddingID uuid.UUID) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM guests WHERE wedding_id = $1),
			(SELECT COUNT(*) FROM guests WHERE wedding_id = $1 AND invite_code IS NULL),
			(SELECT COUNT(*) FROM invitations WHERE wedding_id = $1)`, weddingID).
		Scan(&t.Guests, &t.GuestsWithoutCode, &t.Invitations)
	return t, err
}
