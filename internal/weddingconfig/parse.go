package weddingconfig

import (
	"strconv"
	"time"
	_ "time/tzdata" // cutoff timezones must resolve in minimal containers

	"github.com/evermore-events/backend/internal/models"
)

// Defaults returns the configuration of a wedding with no stored rows.
func Defaults() models.WeddingConfig {
	return Parse(nil)
}

// Parse resolves raw rows into a WeddingConfig. Absent keys take their documented default.
func Parse(rows []models.ConfigRow) models.WeddingConfig {
	raw := make(map[string]string, len(rows))
	for _, r := range rows {
		raw[r.Key] = r.Value
	}
	return models.WeddingConfig{
		PlusOnesEnabled:              boolTrue(raw, KeyPlusOnesEnabled),
		MaxPartySize:                 positiveInt(raw, KeyMaxPartySize, 1),
		RSVPEnabled:                  boolDefaultTrue(raw, KeyRSVPEnabled),
		RSVPCutoffDate:               optString(raw, KeyRSVPCutoffDate),
		RSVPCutoffTimezone:           optString(raw, KeyRSVPCutoffTimezone),
		EmailNotificationsEnabled:    boolTrue(raw, KeyEmailNotificationsEnabled),
		SMSNotificationsEnabled:      boolTrue(raw, KeySMSNotificationsEnabled),
		WhatsAppNotificationsEnabled: boolTrue(raw, KeyWhatsAppNotificationsEnabled),
		AccessCodeEnabled:            boolDefaultTrue(raw, KeyAccessCodeEnabled),
		AccessCodeRequiredRSVP:       boolDefaultTrue(raw, KeyAccessCodeRequiredRSVP),
		AccessCodeRequiredPass:       boolDefaultTrue(raw, KeyAccessCodeRequiredPass),
		AccessCodeRequiredDetails:    boolDefaultTrue(raw, KeyAccessCodeRequiredDetails),
		FoodChoicesEnabled:           boolTrue(raw, KeyFoodChoicesEnabled),
		DietaryRestrictionsEnabled:   boolTrue(raw, KeyDietaryRestrictionsEnabled),
		InvitationCustomMessage:      optString(raw, KeyInvitationCustomMessage),
		RSVPAcceptedMessage:          optString(raw, KeyRSVPAcceptedMessage),
		RSVPDeclinedMessage:          optString(raw, KeyRSVPDeclinedMessage),
		WhatsAppInvitationTemplate:   optString(raw, KeyWhatsAppInvitationTemplate),
	}
}

// boolTrue is true only for the literal "true".
func boolTrue(raw map[string]string, key string) bool {
	return raw[key] == "true"
}

// boolDefaultTrue is true when absent; only the literal "false" turns it off.
func boolDefaultTrue(raw map[string]string, key string) bool {
	v, ok := raw[key]
	if !ok {
		return true
	}
	return v != "false"
}

func positiveInt(raw map[string]string, key string, fallback int) int {
	n, err := strconv.Atoi(raw[key])
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// optString collapses "", "undefined" and "null" to nil. Stale clients serialised unset
// fields as the literal strings.
func optString(raw map[string]string, key string) *string {
	v, ok := raw[key]
	if !ok || v == "" || v == "undefined" || v == "null" {
		return nil
	}
	return &v
}

// RSVPOpen reports whether guests may still respond at now. RSVPs close when rsvp_enabled
// is off or once the local date in the cutoff timezone is after the cutoff date; the cutoff
// day itself is still open. An unparseable cutoff is ignored, an unknown timezone falls back to UTC.
func RSVPOpen(cfg models.WeddingConfig, now time.Time) bool {
	if !cfg.RSVPEnabled {
		return false
	}
	if cfg.RSVPCutoffDate == nil {
		return true
	}
	loc := time.UTC
	if cfg.RSVPCutoffTimezone != nil {
		if l, err := time.LoadLocation(*cfg.RSVPCutoffTimezone); err == nil {
			loc = l
		}
	}
	cutoff, err := time.ParseInLocation(CutoffDateLayout, *cfg.RSVPCutoffDate, loc)
	if err != nil {
		return true
	}
	return now.Before(cutoff.AddDate(0, 0, 1))
}
