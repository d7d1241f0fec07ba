package models

import (
	"time"

	"github.com/google/uuid"
)

// RSVPResponse is the guest's answer.
type RSVPResponse string

const (
	ResponseAccepted RSVPResponse = "accepted"
	ResponseDeclined RSVPResponse = "declined"
)

// Status maps a response onto the invitation event status it produces.
func (r RSVPResponse) Status() InvitationStatus {
	if r == ResponseAccepted {
		return StatusAccepted
	}
	return StatusDeclined
}

// RSVPRecord is one immutable row of rsvps_v2. Never updated in place.
type RSVPRecord struct {
	ID                  uuid.UUID    `json:"id"`
	WeddingID           uuid.UUID    `json:"wedding_id"`
	InvitationEventID   uuid.UUID    `json:"invitation_event_id"`
	Response            RSVPResponse `json:"response"`
	PartySize           int          `json:"party_size"`
	Message             *string      `json:"message,omitempty"`
	DietaryRestrictions *string      `json:"dietary_restrictions,omitempty"`
	FoodChoice          *string      `json:"food_choice,omitempty"`
	UserID              *uuid.UUID   `json:"user_id,omitempty"`
	IP                  string       `json:"ip,omitempty"`
	UserAgent           string       `json:"user_agent,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}

// EventResponseUpdate is the write applied to one InvitationEvent by an RSVP submission.
type EventResponseUpdate struct {
	InvitationEventID   uuid.UUID
	Status              InvitationStatus
	Headcount           int
	DietaryRestrictions *string
	DietaryInformation  *string
	FoodChoice          *string
}
