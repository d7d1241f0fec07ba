package models

import (
	"time"

	"github.com/google/uuid"
)

// Wedding is the tenant. Every guest, invitation and config row is scoped by its ID.
type Wedding struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	EventDate *time.Time `json:"event_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Wedding membership roles.
const (
	WeddingRoleOwner   = "owner"
	WeddingRolePlanner = "planner"
	WeddingRoleViewer  = "viewer"
)

// WeddingUser links a user to a wedding with a role.
type WeddingUser struct {
	ID        uuid.UUID `json:"id"`
	WeddingID uuid.UUID `json:"wedding_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is one part of the celebration (ceremony, reception, brunch) guests can be invited to.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	WeddingID uuid.UUID  `json:"wedding_id"`
	Name      string     `json:"name"`
	Venue     string     `json:"venue,omitempty"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
