package models

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus is the per-event RSVP state.
type InvitationStatus string

const (
	StatusPending  InvitationStatus = "pending"
	StatusAccepted InvitationStatus = "accepted"
	StatusDeclined InvitationStatus = "declined"
	StatusWaitlist InvitationStatus = "waitlist"
)

// Valid reports whether s is a known status.
func (s InvitationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusWaitlist:
		return true
	}
	return false
}

// Invitation is the single invitation held by a guest. Token is the bearer credential
// for the public RSVP page; rotating it kills any previously shared link.
type Invitation struct {
	ID        uuid.UUID `json:"id"`
	WeddingID uuid.UUID `json:"wedding_id"`
	GuestID   uuid.UUID `json:"guest_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// InvitationEvent joins an invitation to an event and carries the mutable RSVP state.
// Dietary and food fields are only populated when Status is accepted.
type InvitationEvent struct {
	ID                  uuid.UUID        `json:"id"`
	WeddingID           uuid.UUID        `json:"wedding_id"`
	InvitationID        uuid.UUID        `json:"invitation_id"`
	EventID             uuid.UUID        `json:"event_id"`
	Status              InvitationStatus `json:"status"`
	Headcount           int              `json:"headcount"`
	EventToken          string           `json:"event_token"`
	DietaryRestrictions *string          `json:"dietary_restrictions,omitempty"`
	DietaryInformation  *string          `json:"dietary_information,omitempty"`
	FoodChoice          *string          `json:"food_choice,omitempty"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ClearDietary drops dietary and food fields; called whenever status is not accepted.
func (e *InvitationEvent) ClearDietary() {
	e.DietaryRestrictions = nil
	e.DietaryInformation = nil
	e.FoodChoice = nil
}

// EventDef is the requested shape of one InvitationEvent on create or replace.
type EventDef struct {
	EventID   uuid.UUID        `json:"event_id"`
	Headcount int              `json:"headcount"`
	Status    InvitationStatus `json:"status"`
}

// InvitationEventView is an InvitationEvent joined with its event and latest RSVP.
type InvitationEventView struct {
	InvitationEvent
	EventName  string      `json:"event_name"`
	EventVenue string      `json:"event_venue,omitempty"`
	StartsAt   *time.Time  `json:"starts_at,omitempty"`
	LatestRSVP *RSVPRecord `json:"latest_rsvp,omitempty"`
}

// InvitationDetail is the typed result of loading an invitation with its guest,
// wedding and event rows in one query shape.
type InvitationDetail struct {
	Invitation Invitation            `json:"invitation"`
	Guest      Guest                 `json:"guest"`
	Wedding    Wedding               `json:"wedding"`
	Events     []InvitationEventView `json:"events"`
}

// EventIDs returns the event ids of the loaded rows.
func (d *InvitationDetail) EventIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.Events))
	for _, e := range d.Events {
		ids = append(ids, e.EventID)
	}
	return ids
}

// InvitationSummary is one row of the paginated admin list.
type InvitationSummary struct {
	ID         uuid.UUID         `json:"id"`
	GuestID    uuid.UUID         `json:"guest_id"`
	GuestName  string            `json:"guest_name"`
	GuestEmail string            `json:"guest_email,omitempty"`
	InviteCode *string           `json:"invite_code,omitempty"`
	Token      string            `json:"token"`
	Events     []InvitationEvent `json:"events"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Page is a generic paginated list envelope.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
