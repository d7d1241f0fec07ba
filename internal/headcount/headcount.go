// Package headcount enforces party-size limits on every path that writes an invitation event.
package headcount

import "github.com/evermore-events/backend/internal/models"

// EventHeadcount is one event's requested headcount. Status passes through untouched.
type EventHeadcount struct {
	EventID   string
	Headcount int
	Status    models.InvitationStatus
}

// Limit returns the effective maximum party size for a guest.
// A nil or non-positive guest total means no guest cap.
func Limit(guestTotalGuests *int, cfg models.WeddingConfig) int {
	if !cfg.PlusOnesEnabled {
		return 1
	}
	limit := cfg.MaxPartySize
	if limit < 1 {
		limit = 1
	}
	if guestTotalGuests != nil && *guestTotalGuests > 0 && *guestTotalGuests < limit {
		limit = *guestTotalGuests
	}
	return limit
}

// Clamp returns requested bounded to [1, Limit].
func Clamp(requested int, guestTotalGuests *int, cfg models.WeddingConfig) int {
	limit := Limit(guestTotalGuests, cfg)
	if requested < 1 {
		return 1
	}
	if requested > limit {
		return limit
	}
	return requested
}

// Validate returns a copy of events with every headcount clamped. The input is not modified.
func Validate(events []EventHeadcount, guestTotalGuests *int, cfg models.WeddingConfig) []EventHeadcount {
	out := make([]EventHeadcount, len(events))
	for i, e := range events {
		e.Headcount = Clamp(e.Headcount, guestTotalGuests, cfg)
		out[i] = e
	}
	return out
}

// ValidateDefs clamps the headcount of each event definition in place and returns it.
func ValidateDefs(defs []models.EventDef, guestTotalGuests *int, cfg models.WeddingConfig) []models.EventDef {
	for i := range defs {
		defs[i].Headcount = Clamp(defs[i].Headcount, guestTotalGuests, cfg)
	}
	return defs
}
