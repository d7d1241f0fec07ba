package guests

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/database"
	"github.com/evermore-events/backend/pkg/utils"
)

// Repository handles guests persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a guests repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const guestColumns = `id, wedding_id, household_id, first_name, last_name,
	COALESCE(email, ''), COALESCE(phone, ''), is_vip, total_guests, invite_code, created_at, updated_at`

func scanGuest(row pgx.Row) (*models.Guest, error) {
	var g models.Guest
	err := row.Scan(&g.ID, &g.WeddingID, &g.HouseholdID, &g.FirstName, &g.LastName,
		&g.Email, &g.Phone, &g.IsVIP, &g.TotalGuests, &g.InviteCode, &g.CreatedAt, &g.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a guest. Empty email and phone are stored as NULL.
func (r *Repository) Create(ctx context.Context, g *models.Guest) error {
	return r.pool.QueryRow(ctx, `INSERT INTO guests (wedding_id, household_id, first_name, last_name, email, phone, is_vip, total_guests)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		g.WeddingID, g.HouseholdID, g.FirstName, g.LastName, nullable(g.Email), nullable(g.Phone), g.IsVIP, g.TotalGuests).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

// Get returns a guest of the wedding.
func (r *Repository) Get(ctx context.Context, weddingID, id uuid.UUID) (*models.Guest, error) {
	return scanGuest(r.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests WHERE wedding_id = $1 AND id = $2`, weddingID, id))
}

// List returns a page of guests ordered by name. Search matches name, email or phone.
func (r *Repository) List(ctx context.Context, weddingID uuid.UUID, p ListParams) (models.Page[models.Guest], error) {
	page := models.Page[models.Guest]{Items: []models.Guest{}, Page: p.Page, PageSize: p.PageSize}
	where := `wedding_id = $1`
	args := []interface{}{weddingID}
	if p.Search != "" {
		where += ` AND (first_name || ' ' || last_name ILIKE $2 OR email ILIKE $2 OR phone ILIKE $2)`
		args = append(args, "%"+p.Search+"%")
	}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM guests WHERE `+where, args...).Scan(&page.Total); err != nil {
		return page, err
	}
	n := len(args)
	args = append(args, p.PageSize, utils.Offset(p.Page, p.PageSize))
	rows, err := r.pool.Query(ctx, `SELECT `+guestColumns+` FROM guests WHERE `+where+`
		ORDER BY last_name, first_name, id
		LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return page, err
	}
	defer rows.Close()
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *g)
	}
	return page, rows.Err()
}

// Update writes the editable fields.
func (r *Repository) Update(ctx context.Context, g *models.Guest) error {
	err := r.pool.QueryRow(ctx, `UPDATE guests SET first_name = $3, last_name = $4, email = $5, phone = $6,
			is_vip = $7, total_guests = $8, updated_at = NOW()
		WHERE wedding_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		g.WeddingID, g.ID, g.FirstName, g.LastName, nullable(g.Email), nullable(g.Phone), g.IsVIP, g.TotalGuests).
		Scan(&g.CreatedAt, &g.UpdatedAt)
	if database.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

// Delete removes a guest.
func (r *Repository) Delete(ctx context.Context, weddingID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM guests WHERE wedding_id = $1 AND id = $2`, weddingID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InvitationIDForGuest returns the guest's invitation id, if any.
func (r *Repository) InvitationIDForGuest(ctx context.Context, weddingID, guestID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM invitations WHERE wedding_id = $1 AND guest_id = $2`, weddingID, guestID).Scan(&id)
	if database.IsNoRows(err) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}
