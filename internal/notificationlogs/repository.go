package notificationlogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermore-events/backend/internal/models"
)

// Repository handles notification_logs persistence. The table is append-only.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one send attempt. sent_at is a naive timestamp holding local wall-clock time.
func (r *Repository) Insert(ctx context.Context, l *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs
		(wedding_id, invitation_token, guest_id, channel, kind, recipient, success, message_id, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
		RETURNING id`
	return r.pool.QueryRow(ctx, q, l.WeddingID, l.InvitationToken, l.GuestID, l.Channel, l.Kind, l.Recipient,
		l.Success, l.MessageID, l.ErrorMessage, l.SentAt).Scan(&l.ID)
}

// CountSends counts attempts for token with sent_at in [from, to). Empty channel counts all channels.
func (r *Repository) CountSends(ctx context.Context, weddingID uuid.UUID, token, channel string, from, to time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM notification_logs
		WHERE wedding_id = $1 AND invitation_token = $2
		  AND ($3 = '' OR channel = $3)
		  AND sent_at >= $4 AND sent_at < $5`
	var n int
	err := r.pool.QueryRow(ctx, q, weddingID, token, channel, from, to).Scan(&n)
	return n, err
}

// ListByWedding returns attempts for a wedding, newest first, with the total count.
// Optional guest and channel filters narrow the result.
func (r *Repository) ListByWedding(ctx context.Context, weddingID uuid.UUID, guestID *uuid.UUID, channel string, limit, offset int) ([]models.NotificationLog, int, error) {
	const where = `WHERE wedding_id = $1 AND ($2::uuid IS NULL OR guest_id = $2) AND ($3 = '' OR channel = $3)`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notification_logs `+where, weddingID, guestID, channel).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := `SELECT id, wedding_id, guest_id, channel, kind, recipient, success,
		COALESCE(message_id, ''), COALESCE(error_message, ''), sent_at
		FROM notification_logs ` + where + `
		ORDER BY sent_at DESC
		LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, q, weddingID, guestID, channel, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := make([]models.NotificationLog, 0, limit)
	for rows.Next() {
		var l models.NotificationLog
		if err := rows.Scan(&l.ID, &l.WeddingID, &l.GuestID, &l.Channel, &l.Kind, &l.Recipient, &l.Success,
			&l.MessageID, &l.ErrorMessage, &l.SentAt); err != nil {
			return nil, 0, err
		}
		list = append(list, l)
	}
	return list, total, rows.Err()
}

// Stats aggregates attempts per channel for a wedding.
func (r *Repository) Stats(ctx context.Context, weddingID uuid.UUID) ([]models.NotificationStats, error) {
	const q = `SELECT channel,
			COUNT(*) FILTER (WHERE success),
			COUNT(*) FILTER (WHERE NOT success)
		FROM notification_logs
		WHERE wedding_id = $1
		GROUP BY channel
		ORDER BY channel`
	rows, err := r.pool.Query(ctx, q, weddingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.NotificationStats
	for rows.Next() {
		var s models.NotificationStats
		if err := rows.Scan(&s.Channel, &s.Sent, &s.Failed); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
