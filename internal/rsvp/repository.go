package rsvp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/database"
)

// Repository handles the RSVP writes: invitation_events status and rsvps_v2 history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an RSVP repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByInviteCode resolves a code across all weddings. The caller compares the returned
// wedding with its own tenant.
func (r *Repository) FindByInviteCode(ctx context.Context, code string) (uuid.UUID, uuid.UUID, error) {
	var weddingID, invitationID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT i.wedding_id, i.id
		FROM guests g
		JOIN invitations i ON i.guest_id = g.id AND i.wedding_id = g.wedding_id
		WHERE g.invite_code = $1`, code).Scan(&weddingID, &invitationID)
	if database.IsNoRows(err) {
		return uuid.Nil, uuid.Nil, ErrNotFound
	}
	return weddingID, invitationID, err
}

// FindByToken resolves an invitation token within a wedding.
func (r *Repository) FindByToken(ctx context.Context, weddingID uuid.UUID, token string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM invitations WHERE wedding_id = $1 AND token = $2`, weddingID, token).Scan(&id)
	if database.IsNoRows(err) {
		return uuid.Nil, ErrNotFound
	}
	return id, err
}

// ApplyResponses writes every update in one transaction.
func (r *Repository) ApplyResponses(ctx context.Context, weddingID uuid.UUID, updates []models.EventResponseUpdate) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, u := range updates {
			tag, err := tx.Exec(ctx, `UPDATE invitation_events
				SET status = $3, headcount = $4, dietary_restrictions = $5, dietary_information = $6,
				    food_choice = $7, updated_at = NOW()
				WHERE wedding_id = $1 AND id = $2`,
				weddingID, u.InvitationEventID, u.Status, u.Headcount, u.DietaryRestrictions, u.DietaryInformation, u.FoodChoice)
			if err != nil {
				return fmt.Errorf("update invitation event %s: %w", u.InvitationEventID, err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}

// InsertHistory appends one immutable rsvps_v2 row.
func (r *Repository) InsertHistory(ctx context.Context, rec *models.RSVPRecord) error {
	return r.pool.QueryRow(ctx, `INSERT INTO rsvps_v2
		(wedding_id, invitation_event_id, response, party_size, message, dietary_restrictions, food_choice, user_id, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		rec.WeddingID, rec.InvitationEventID, rec.Response, rec.PartySize, rec.Message, rec.DietaryRestrictions,
		rec.FoodChoice, rec.UserID, rec.IP, rec.UserAgent).Scan(&rec.ID, &rec.CreatedAt)
}
