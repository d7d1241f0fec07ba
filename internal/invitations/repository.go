package invitations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/database"
)

// Repository handles invitations and invitation_events persistence. Every query is scoped
// by wedding_id; the UNIQUE(guest_id) constraint enforces one invitation per guest.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an invitations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func notFound(err error) error {
	if database.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

const guestColumns = `g.id, g.wedding_id, g.household_id, g.first_name, g.last_name,
	COALESCE(g.email, ''), COALESCE(g.phone, ''), g.is_vip, g.total_guests, g.invite_code, g.created_at, g.updated_at`

func scanGuest(row pgx.Row, g *models.Guest) error {
	return row.Scan(&g.ID, &g.WeddingID, &g.HouseholdID, &g.FirstName, &g.LastName,
		&g.Email, &g.Phone, &g.IsVIP, &g.TotalGuests, &g.InviteCode, &g.CreatedAt, &g.UpdatedAt)
}

// GetGuest returns a guest of the wedding.
func (r *Repository) GetGuest(ctx context.Context, weddingID, guestID uuid.UUID) (*models.Guest, error) {
	var g models.Guest
	row := r.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests g WHERE g.wedding_id = $1 AND g.id = $2`, weddingID, guestID)
	if err := scanGuest(row, &g); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// InviteCodeExists reports whether any guest holds code. Codes are unique across weddings.
func (r *Repository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM guests WHERE invite_code = $1)`, code).Scan(&exists)
	return exists, err
}

// AssignInviteCode sets the guest's code if it has none and returns the code in effect.
func (r *Repository) AssignInviteCode(ctx context.Context, weddingID, guestID uuid.UUID, code string) (string, error) {
	var assigned string
	err := r.pool.QueryRow(ctx, `UPDATE guests SET invite_code = $3, updated_at = NOW()
		WHERE wedding_id = $1 AND id = $2 AND invite_code IS NULL
		RETURNING invite_code`, weddingID, guestID, code).Scan(&assigned)
	switch {
	case err == nil:
		return assigned, nil
	case database.IsUniqueViolation(err):
		return "", ErrCodeCollision
	case !database.IsNoRows(err):
		return "", err
	}
	// Already had a code, or the guest is not in this wedding.
	var existing *string
	if err := r.pool.QueryRow(ctx, `SELECT invite_code FROM guests WHERE wedding_id = $1 AND id = $2`, weddingID, guestID).Scan(&existing); err != nil {
		return "", notFound(err)
	}
	if existing == nil {
		return "", fmt.Errorf("guest %s has no invite code after assignment", guestID)
	}
	return *existing, nil
}

// EventIDsInWedding returns which of eventIDs belong to the wedding.
func (r *Repository) EventIDsInWedding(ctx context.Context, weddingID uuid.UUID, eventIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM events WHERE wedding_id = $1 AND id = ANY($2)`, weddingID, eventIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[uuid.UUID]bool, len(eventIDs))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

const invitationColumns = `id, wedding_id, guest_id, token, created_at`

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	var inv models.Invitation
	if err := row.Scan(&inv.ID, &inv.WeddingID, &inv.GuestID, &inv.Token, &inv.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

// GetInvitation returns an invitation of the wedding.
func (r *Repository) GetInvitation(ctx context.Context, weddingID, id uuid.UUID) (*models.Invitation, error) {
	return scanInvitation(r.pool.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE wedding_id = $1 AND id = $2`, weddingID, id))
}

// GetInvitationByGuest returns the guest's single invitation.
func (r *Repository) GetInvitationByGuest(ctx context.Context, weddingID, guestID uuid.UUID) (*models.Invitation, error) {
	return scanInvitation(r.pool.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE wedding_id = $1 AND guest_id = $2`, weddingID, guestID))
}

// CreateInvitation inserts inv.
func (r *Repository) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO invitations (wedding_id, guest_id, token)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, inv.WeddingID, inv.GuestID, inv.Token).Scan(&inv.ID, &inv.CreatedAt)
	if database.IsUniqueViolation(err) {
		return ErrGuestHasInvitation
	}
	return err
}

// UpdateInvitationGuest reassigns the invitation to another guest.
func (r *Repository) UpdateInvitationGuest(ctx context.Context, weddingID, id, guestID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invitations SET guest_id = $3 WHERE wedding_id = $1 AND id = $2`, weddingID, id, guestID)
	if database.IsUniqueViolation(err) {
		return ErrGuestHasInvitation
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetInvitationToken overwrites the invitation token.
func (r *Repository) SetInvitationToken(ctx context.Context, weddingID, id uuid.UUID, token string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invitations SET token = $3 WHERE wedding_id = $1 AND id = $2`, weddingID, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const eventColumns = `ie.id, ie.wedding_id, ie.invitation_id, ie.event_id, ie.status, ie.headcount, ie.event_token,
	ie.dietary_restrictions, ie.dietary_information, ie.food_choice, ie.updated_at`

func scanEvent(row pgx.Row, e *models.InvitationEvent) error {
	return row.Scan(&e.ID, &e.WeddingID, &e.InvitationID, &e.EventID, &e.Status, &e.Headcount, &e.EventToken,
		&e.DietaryRestrictions, &e.DietaryInformation, &e.FoodChoice, &e.UpdatedAt)
}

// ListInvitationEvents returns the invitation's event rows.
func (r *Repository) ListInvitationEvents(ctx context.Context, weddingID, invitationID uuid.UUID) ([]models.InvitationEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM invitation_events ie
		WHERE ie.wedding_id = $1 AND ie.invitation_id = $2`, weddingID, invitationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.InvitationEvent
	for rows.Next() {
		var e models.InvitationEvent
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// GetInvitationEvent returns one invitation event of the wedding.
func (r *Repository) GetInvitationEvent(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationEvent, error) {
	var e models.InvitationEvent
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM invitation_events ie WHERE ie.wedding_id = $1 AND ie.id = $2`, weddingID, id)
	if err := scanEvent(row, &e); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// ReplaceEvents deletes existing rows for the events being written (or all rows) and
// inserts events in one transaction.
func (r *Repository) ReplaceEvents(ctx context.Context, weddingID, invitationID uuid.UUID, events []models.InvitationEvent, replaceAll bool) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if replaceAll {
			if _, err := tx.Exec(ctx, `DELETE FROM invitation_events WHERE wedding_id = $1 AND invitation_id = $2`, weddingID, invitationID); err != nil {
				return err
			}
		} else {
			ids := make([]uuid.UUID, 0, len(events))
			for _, e := range events {
				ids = append(ids, e.EventID)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM invitation_events
				WHERE wedding_id = $1 AND invitation_id = $2 AND event_id = ANY($3)`, weddingID, invitationID, ids); err != nil {
				return err
			}
		}
		const ins = `INSERT INTO invitation_events (wedding_id, invitation_id, event_id, status, headcount, event_token)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, updated_at`
		for i := range events {
			e := &events[i]
			if err := tx.QueryRow(ctx, ins, weddingID, invitationID, e.EventID, e.Status, e.Headcount, e.EventToken).
				Scan(&e.ID, &e.UpdatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateInvitationEvent writes status, headcount and dietary fields.
func (r *Repository) UpdateInvitationEvent(ctx context.Context, e *models.InvitationEvent) error {
	err := r.pool.QueryRow(ctx, `UPDATE invitation_events
		SET status = $3, headcount = $4, dietary_restrictions = $5, dietary_information = $6, food_choice = $7, updated_at = NOW()
		WHERE wedding_id = $1 AND id = $2
		RETURNING updated_at`,
		e.WeddingID, e.ID, e.Status, e.Headcount, e.DietaryRestrictions, e.DietaryInformation, e.FoodChoice).Scan(&e.UpdatedAt)
	return notFound(err)
}

// UpdateHeadcounts sets headcount per invitation event id in one transaction.
func (r *Repository) UpdateHeadcounts(ctx context.Context, weddingID uuid.UUID, headcounts map[uuid.UUID]int) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for id, n := range headcounts {
			if _, err := tx.Exec(ctx, `UPDATE invitation_events SET headcount = $3, updated_at = NOW()
				WHERE wedding_id = $1 AND id = $2`, weddingID, id, n); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetEventToken overwrites one invitation event token.
func (r *Repository) SetEventToken(ctx context.Context, weddingID, id uuid.UUID, token string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invitation_events SET event_token = $3, updated_at = NOW()
		WHERE wedding_id = $1 AND id = $2`, weddingID, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRSVPHistory removes rsvps_v2 rows for the invitations' events.
func (r *Repository) DeleteRSVPHistory(ctx context.Context, weddingID uuid.UUID, invitationIDs []uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rsvps_v2
		WHERE wedding_id = $1 AND invitation_event_id IN (
			SELECT id FROM invitation_events WHERE wedding_id = $1 AND invitation_id = ANY($2))`,
		weddingID, invitationIDs)
	return tag.RowsAffected(), err
}

// DeleteInvitationEvents removes the invitations' event rows.
func (r *Repository) DeleteInvitationEvents(ctx context.Context, weddingID uuid.UUID, invitationIDs []uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invitation_events WHERE wedding_id = $1 AND invitation_id = ANY($2)`, weddingID, invitationIDs)
	return tag.RowsAffected(), err
}

// DeleteInvitations removes the invitations.
func (r *Repository) DeleteInvitations(ctx context.Context, weddingID uuid.UUID, ids []uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invitations WHERE wedding_id = $1 AND id = ANY($2)`, weddingID, ids)
	return tag.RowsAffected(), err
}

// ListInvitationIDs returns every invitation id of the wedding, oldest first.
func (r *Repository) ListInvitationIDs(ctx context.Context, weddingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM invitations WHERE wedding_id = $1 ORDER BY created_at, id`, weddingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListInvitations returns a page of invitation summaries with their event rows.
func (r *Repository) ListInvitations(ctx context.Context, weddingID uuid.UUID, p ListParams) (models.Page[models.InvitationSummary], error) {
	page := models.Page[models.InvitationSummary]{Page: p.Page, PageSize: p.PageSize, Items: []models.InvitationSummary{}}
	where := []string{"i.wedding_id = $1"}
	args := []interface{}{weddingID}
	if s := strings.TrimSpace(p.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(g.first_name ILIKE $%d OR g.last_name ILIKE $%d OR g.email ILIKE $%d OR g.invite_code ILIKE $%d)", n, n, n, n))
	}
	if p.Status != "" {
		args = append(args, p.Status)
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM invitation_events x WHERE x.invitation_id = i.id AND x.status = $%d)", len(args)))
	}
	from := ` FROM invitations i JOIN guests g ON g.id = i.guest_id AND g.wedding_id = i.wedding_id WHERE ` + strings.Join(where, " AND ")

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&page.Total); err != nil {
		return page, err
	}
	args = append(args, p.PageSize, (p.Page-1)*p.PageSize)
	q := `SELECT i.id, i.guest_id, g.first_name, g.last_name, COALESCE(g.email, ''), g.invite_code, i.token, i.created_at` + from +
		fmt.Sprintf(` ORDER BY g.last_name, g.first_name, i.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return page, err
	}
	index := make(map[uuid.UUID]int)
	var ids []uuid.UUID
	for rows.Next() {
		var s models.InvitationSummary
		var first, last string
		if err := rows.Scan(&s.ID, &s.GuestID, &first, &last, &s.GuestEmail, &s.InviteCode, &s.Token, &s.CreatedAt); err != nil {
			rows.Close()
			return page, err
		}
		s.GuestName = (&models.Guest{FirstName: first, LastName: last}).FullName()
		s.Events = []models.InvitationEvent{}
		index[s.ID] = len(page.Items)
		ids = append(ids, s.ID)
		page.Items = append(page.Items, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return page, err
	}
	if len(ids) == 0 {
		return page, nil
	}

	evRows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM invitation_events ie
		WHERE ie.wedding_id = $1 AND ie.invitation_id = ANY($2)`, weddingID, ids)
	if err != nil {
		return page, err
	}
	defer evRows.Close()
	for evRows.Next() {
		var e models.InvitationEvent
		if err := scanEvent(evRows, &e); err != nil {
			return page, err
		}
		i := index[e.InvitationID]
		page.Items[i].Events = append(page.Items[i].Events, e)
	}
	return page, evRows.Err()
}

// GetDetail loads the invitation, its guest and wedding, and every event row joined with
// the event and its most recent RSVP history row.
func (r *Repository) GetDetail(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error) {
	var d models.InvitationDetail
	row := r.pool.QueryRow(ctx, `SELECT i.id, i.wedding_id, i.guest_id, i.token, i.created_at,
			`+guestColumns+`,
			w.id, w.name, w.slug, w.event_date, w.created_at, w.updated_at
		FROM invitations i
		JOIN guests g ON g.id = i.guest_id AND g.wedding_id = i.wedding_id
		JOIN weddings w ON w.id = i.wedding_id
		WHERE i.wedding_id = $1 AND i.id = $2`, weddingID, id)
	g := &d.Guest
	w := &d.Wedding
	if err := row.Scan(&d.Invitation.ID, &d.Invitation.WeddingID, &d.Invitation.GuestID, &d.Invitation.Token, &d.Invitation.CreatedAt,
		&g.ID, &g.WeddingID, &g.HouseholdID, &g.FirstName, &g.LastName, &g.Email, &g.Phone, &g.IsVIP, &g.TotalGuests, &g.InviteCode, &g.CreatedAt, &g.UpdatedAt,
		&w.ID, &w.Name, &w.Slug, &w.EventDate, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	events, err := LoadEventViews(ctx, r.pool, weddingID, id)
	if err != nil {
		return nil, err
	}
	d.Events = events
	return &d, nil
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// LoadEventViews returns an invitation's events with event details and latest RSVP.
func LoadEventViews(ctx context.Context, q Querier, weddingID, invitationID uuid.UUID) ([]models.InvitationEventView, error) {
	rows, err := q.Query(ctx, `SELECT `+eventColumns+`, e.name, e.venue, e.starts_at,
			lr.id, lr.response, lr.party_size, lr.message, lr.dietary_restrictions, lr.food_choice, lr.created_at
		FROM invitation_events ie
		JOIN events e ON e.id = ie.event_id AND e.wedding_id = ie.wedding_id
		LEFT JOIN LATERAL (
			SELECT id, response, party_size, message, dietary_restrictions, food_choice, created_at
			FROM rsvps_v2 r
			WHERE r.wedding_id = ie.wedding_id AND r.invitation_event_id = ie.id
			ORDER BY r.created_at DESC
			LIMIT 1
		) lr ON TRUE
		WHERE ie.wedding_id = $1 AND ie.invitation_id = $2
		ORDER BY e.starts_at NULLS LAST, e.name`, weddingID, invitationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.InvitationEventView{}
	for rows.Next() {
		var v models.InvitationEventView
		e := &v.InvitationEvent
		var (
			rsvpID    *uuid.UUID
			response  *string
			partySize *int
			message   *string
			dietary   *string
			food      *string
			createdAt *time.Time
		)
		if err := rows.Scan(&e.ID, &e.WeddingID, &e.InvitationID, &e.EventID, &e.Status, &e.Headcount, &e.EventToken,
			&e.DietaryRestrictions, &e.DietaryInformation, &e.FoodChoice, &e.UpdatedAt,
			&v.EventName, &v.EventVenue, &v.StartsAt,
			&rsvpID, &response, &partySize, &message, &dietary, &food, &createdAt); err != nil {
			return nil, err
		}
		if rsvpID != nil && response != nil && partySize != nil && createdAt != nil {
			v.LatestRSVP = &models.RSVPRecord{
				ID:                  *rsvpID,
				WeddingID:           weddingID,
				InvitationEventID:   e.ID,
				Response:            models.RSVPResponse(*response),
				PartySize:           *partySize,
				Message:             message,
				DietaryRestrictions: dietary,
				FoodChoice:          food,
				CreatedAt:           *createdAt,
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
