package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermore-events/backend/internal/models"
)

// Repository handles audit_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one audit row.
func (r *Repository) Insert(ctx context.Context, l *models.AuditLog) error {
	const q = `INSERT INTO audit_logs (wedding_id, action, details, actor, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	return r.pool.QueryRow(ctx, q, l.WeddingID, l.Action, l.Details, l.Actor, l.IP, l.UserAgent, l.CreatedAt).Scan(&l.ID)
}

// List returns audit rows for a wedding, newest first. Empty action matches all actions.
func (r *Repository) List(ctx context.Context, weddingID uuid.UUID, action string, limit, offset int) ([]models.AuditLog, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE wedding_id = $1 AND ($2 = '' OR action = $2)`,
		weddingID, action).Scan(&total); err != nil {
		return nil, 0, err
	}
	const q = `SELECT id, wedding_id, action, details, actor, ip, user_agent, created_at
		FROM audit_logs
		WHERE wedding_id = $1 AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, q, weddingID, action, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := make([]models.AuditLog, 0, limit)
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.WeddingID, &l.Action, &l.Details, &l.Actor, &l.IP, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, l)
	}
	return list, total, rows.Err()
}
