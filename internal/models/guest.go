package models

import (
	"time"

	"github.com/google/uuid"
)

// Guest is a person on the wedding's guest list.
// TotalGuests is the household cap including the guest; nil means "no cap beyond config".
type Guest struct {
	ID          uuid.UUID  `json:"id"`
	WeddingID   uuid.UUID  `json:"wedding_id"`
	HouseholdID *uuid.UUID `json:"household_id,omitempty"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	IsVIP       bool       `json:"is_vip"`
	TotalGuests *int       `json:"total_guests,omitempty"`
	InviteCode  *string    `json:"invite_code,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FullName returns "First Last" without stray spaces.
func (g *Guest) FullName() string {
	switch {
	case g.LastName == "":
		return g.FirstName
	case g.FirstName == "":
		return g.LastName
	}
	return g.FirstName + " " + g.LastName
}

// HasPhone reports whether the guest has any phone number on file.
func (g *Guest) HasPhone() bool { return g.Phone != "" }

// HasEmail reports whether the guest has an email address on file.
func (g *Guest) HasEmail() bool { return g.Email != "" }
