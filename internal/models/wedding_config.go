package models

// Notification channels.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// WeddingConfig is the resolved per-wedding configuration. Absent keys resolve to documented
// defaults; optional strings are nil when unset.
type WeddingConfig struct {
	PlusOnesEnabled              bool    `json:"plus_ones_enabled"`
	MaxPartySize                 int     `json:"max_party_size"`
	RSVPEnabled                  bool    `json:"rsvp_enabled"`
	RSVPCutoffDate               *string `json:"rsvp_cutoff_date,omitempty"`
	RSVPCutoffTimezone           *string `json:"rsvp_cutoff_timezone,omitempty"`
	EmailNotificationsEnabled    bool    `json:"email_notifications_enabled"`
	SMSNotificationsEnabled      bool    `json:"sms_notifications_enabled"`
	WhatsAppNotificationsEnabled bool    `json:"whatsapp_notifications_enabled"`
	AccessCodeEnabled            bool    `json:"access_code_enabled"`
	AccessCodeRequiredRSVP       bool    `json:"access_code_required_rsvp"`
	AccessCodeRequiredPass       bool    `json:"access_code_required_pass"`
	AccessCodeRequiredDetails    bool    `json:"access_code_required_details"`
	FoodChoicesEnabled           bool    `json:"food_choices_enabled"`
	DietaryRestrictionsEnabled   bool    `json:"dietary_restrictions_enabled"`
	InvitationCustomMessage      *string `json:"invitation_custom_message,omitempty"`
	RSVPAcceptedMessage          *string `json:"rsvp_accepted_message,omitempty"`
	RSVPDeclinedMessage          *string `json:"rsvp_declined_message,omitempty"`
	WhatsAppInvitationTemplate   *string `json:"whatsapp_invitation_template,omitempty"`
}

// EnabledChannels returns the notification channels switched on, in dispatch order.
func (c WeddingConfig) EnabledChannels() []string {
	var out []string
	if c.EmailNotificationsEnabled {
		out = append(out, ChannelEmail)
	}
	if c.WhatsAppNotificationsEnabled {
		out = append(out, ChannelWhatsApp)
	}
	if c.SMSNotificationsEnabled {
		out = append(out, ChannelSMS)
	}
	return out
}

// ConfigRow is one raw wedding_config row.
type ConfigRow struct {
	Key   string
	Value string
}
