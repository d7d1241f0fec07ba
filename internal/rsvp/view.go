package rsvp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evermore-events/backend/internal/headcount"
	"github.com/evermore-events/backend/internal/invitations"
	"github.com/evermore-events/backend/internal/models"
)

// PublicEvent is one event as the guest sees it.
type PublicEvent struct {
	InvitationEventID uuid.UUID               `json:"invitation_event_id"`
	Name              string                  `json:"name"`
	Venue             string                  `json:"venue,omitempty"`
	StartsAt          *time.Time              `json:"starts_at,omitempty"`
	Status            models.InvitationStatus `json:"status"`
	Headcount         int                     `json:"headcount"`
}

// PublicInvitation is the guest-facing invitation page. When AccessCodeRequired is set only
// the wedding name is filled in.
type PublicInvitation struct {
	WeddingName        string        `json:"wedding_name"`
	AccessCodeRequired bool          `json:"access_code_required"`
	GuestName          string        `json:"guest_name,omitempty"`
	EventDate          *time.Time    `json:"event_date,omitempty"`
	Events             []PublicEvent `json:"events,omitempty"`
	RSVPOpen           bool          `json:"rsvp_open"`
	MaxPartySize       int           `json:"max_party_size"`
	FoodChoicesEnabled bool          `json:"food_choices_enabled"`
	DietaryEnabled     bool          `json:"dietary_restrictions_enabled"`
	CustomMessage      *string       `json:"custom_message,omitempty"`
	InviteCodeForRSVP  bool          `json:"invite_code_required_for_rsvp"`
}

// View loads the invitation behind token. When the wedding requires an access code for
// details, accessCode must match the guest's invite code; otherwise a redacted page is
// returned with ErrAccessCodeRequired.
func (s *Service) View(ctx context.Context, weddingID uuid.UUID, token, accessCode string) (*PublicInvitation, error) {
	id, err := s.store.FindByToken(ctx, weddingID, strings.TrimSpace(token))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	d, err := s.loader.GetDetail(ctx, weddingID, id)
	if errors.Is(err, invitations.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invitation: %w", err)
	}
	cfg, err := s.configs.GetConfig(ctx, weddingID)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	out := &PublicInvitation{WeddingName: d.Wedding.Name}
	if cfg.AccessCodeEnabled && cfg.AccessCodeRequiredDetails {
		code := strings.ToUpper(strings.TrimSpace(accessCode))
		if d.Guest.InviteCode == nil || code != *d.Guest.InviteCode {
			out.AccessCodeRequired = true
			return out, ErrAccessCodeRequired
		}
	}
	out.GuestName = d.Guest.FullName()
	out.EventDate = d.Wedding.EventDate
	out.RSVPOpen = s.checkOpen(cfg) == nil
	out.MaxPartySize = headcount.Limit(d.Guest.TotalGuests, cfg)
	out.FoodChoicesEnabled = cfg.FoodChoicesEnabled
	out.DietaryEnabled = cfg.DietaryRestrictionsEnabled
	out.CustomMessage = cfg.InvitationCustomMessage
	out.InviteCodeForRSVP = cfg.AccessCodeEnabled && cfg.AccessCodeRequiredRSVP
	for _, ev := range d.Events {
		out.Events = append(out.Events, PublicEvent{
			InvitationEventID: ev.ID,
			Name:              ev.EventName,
			Venue:             ev.EventVenue,
			StartsAt:          ev.StartsAt,
			Status:            ev.Status,
			Headcount:         ev.Headcount,
		})
	}
	return out, nil
}
