package weddingconfig

// Stored wedding_config keys.
const (
	KeyPlusOnesEnabled              = "plus_ones_enabled"
	KeyMaxPartySize                 = "max_party_size"
	KeyRSVPEnabled                  = "rsvp_enabled"
	KeyRSVPCutoffDate               = "rsvp_cutoff_date"
	KeyRSVPCutoffTimezone           = "rsvp_cutoff_timezone"
	KeyEmailNotificationsEnabled    = "email_notifications_enabled"
	KeySMSNotificationsEnabled      = "sms_notifications_enabled"
	KeyWhatsAppNotificationsEnabled = "whatsapp_notifications_enabled"
	KeyAccessCodeEnabled            = "access_code_enabled"
	KeyAccessCodeRequiredRSVP       = "access_code_required_rsvp"
	KeyAccessCodeRequiredPass       = "access_code_required_pass"
	KeyAccessCodeRequiredDetails    = "access_code_required_details"
	KeyFoodChoicesEnabled           = "food_choices_enabled"
	KeyDietaryRestrictionsEnabled   = "dietary_restrictions_enabled"
	KeyInvitationCustomMessage      = "invitation_custom_message"
	KeyRSVPAcceptedMessage          = "rsvp_accepted_message"
	KeyRSVPDeclinedMessage          = "rsvp_declined_message"
	KeyWhatsAppInvitationTemplate   = "whatsapp_invitation_template"
)

// CutoffDateLayout is the stored format of rsvp_cutoff_date.
const CutoffDateLayout = "2006-01-02"

type kind int

const (
	kindBool kind = iota
	kindBoolDefaultTrue
	kindPositiveInt
	kindDate
	kindTimezone
	kindString
)

// known maps every accepted key to how its value is parsed and validated.
var known = map[string]kind{
	KeyPlusOnesEnabled:              kindBool,
	KeyMaxPartySize:                 kindPositiveInt,
	KeyRSVPEnabled:                  kindBoolDefaultTrue,
	KeyRSVPCutoffDate:               kindDate,
	KeyRSVPCutoffTimezone:           kindTimezone,
	KeyEmailNotificationsEnabled:    kindBool,
	KeySMSNotificationsEnabled:      kindBool,
	KeyWhatsAppNotificationsEnabled: kindBool,
	KeyAccessCodeEnabled:            kindBoolDefaultTrue,
	KeyAccessCodeRequiredRSVP:       kindBoolDefaultTrue,
	KeyAccessCodeRequiredPass:       kindBoolDefaultTrue,
	KeyAccessCodeRequiredDetails:    kindBoolDefaultTrue,
	KeyFoodChoicesEnabled:           kindBool,
	KeyDietaryRestrictionsEnabled:   kindBool,
	KeyInvitationCustomMessage:      kindString,
	KeyRSVPAcceptedMessage:          kindString,
	KeyRSVPDeclinedMessage:          kindString,
	KeyWhatsAppInvitationTemplate:   kindString,
}

// clearable keys are deleted, not stored, when updated to the empty string.
var clearable = map[string]bool{
	KeyRSVPCutoffDate:             true,
	KeyRSVPCutoffTimezone:         true,
	KeyInvitationCustomMessage:    true,
	KeyRSVPAcceptedMessage:        true,
	KeyRSVPDeclinedMessage:        true,
	KeyWhatsAppInvitationTemplate: true,
}
