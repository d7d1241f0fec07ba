package weddings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/database"
)

var (
	// ErrNotFound is returned for unknown weddings and users.
	ErrNotFound = errors.New("wedding not found")
	// ErrSlugTaken is returned when the slug is already used.
	ErrSlugTaken = errors.New("a wedding with this slug already exists")
)

// Repository handles weddings and wedding_users persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a weddings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const weddingColumns = `w.id, w.name, w.slug, w.event_date, w.created_at, w.updated_at`

func scanWedding(row pgx.Row) (*models.Wedding, error) {
	var w models.Wedding
	if err := row.Scan(&w.ID, &w.Name, &w.Slug, &w.EventDate, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// Create inserts the wedding and makes ownerID its owner in one transaction.
func (r *Repository) Create(ctx context.Context, w *models.Wedding, ownerID uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO weddings (name, slug, event_date)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`, w.Name, w.Slug, w.EventDate).
			Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
		if database.IsUniqueViolation(err) {
			return ErrSlugTaken
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO wedding_users (wedding_id, user_id, role) VALUES ($1, $2, $3)`,
			w.ID, ownerID, models.WeddingRoleOwner)
		return err
	})
}

// GetByID returns a wedding by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error) {
	return scanWedding(r.pool.QueryRow(ctx, `SELECT `+weddingColumns+` FROM weddings w WHERE w.id = $1`, id))
}

// GetBySlug returns a wedding by its public slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Wedding, error) {
	return scanWedding(r.pool.QueryRow(ctx, `SELECT `+weddingColumns+` FROM weddings w WHERE w.slug = $1`, slug))
}

// Update sets name and event date.
func (r *Repository) Update(ctx context.Context, w *models.Wedding) error {
	err := r.pool.QueryRow(ctx, `UPDATE weddings SET name = $2, event_date = $3, updated_at = NOW()
		WHERE id = $1 RETURNING slug, created_at, updated_at`, w.ID, w.Name, w.EventDate).
		Scan(&w.Slug, &w.CreatedAt, &w.UpdatedAt)
	if database.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

// AddMember adds or re-roles a member.
func (r *Repository) AddMember(ctx context.Context, weddingID, userID uuid.UUID, role string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO wedding_users (wedding_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (wedding_id, user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`,
		weddingID, userID, role)
	return err
}

// GetUserRole returns the user's role in the wedding, or "" when not a member.
func (r *Repository) GetUserRole(ctx context.Context, weddingID, userID uuid.UUID) (string, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM wedding_users WHERE wedding_id = $1 AND user_id = $2`,
		weddingID, userID).Scan(&role)
	if database.IsNoRows(err) {
		return "", nil
	}
	return role, err
}

// ListForUser returns the weddings the user is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Wedding, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+weddingColumns+`
		FROM weddings w
		INNER JOIN wedding_users wu ON wu.wedding_id = w.id
		WHERE wu.user_id = $1
		ORDER BY w.event_date NULLS LAST, w.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Wedding{}
	for rows.Next() {
		w, err := scanWedding(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

// Member is a wedding member with user details.
type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
	AddedAt  time.Time `json:"added_at"`
}

// ListMembers returns members of a wedding, oldest first.
func (r *Repository) ListMembers(ctx context.Context, weddingID uuid.UUID) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT wu.user_id, u.email, u.full_name, wu.role, wu.created_at
		FROM wedding_users wu
		INNER JOIN users u ON u.id = wu.user_id
		WHERE wu.wedding_id = $1
		ORDER BY wu.created_at`, weddingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.FullName, &m.Role, &m.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
