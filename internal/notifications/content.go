package notifications

import (
	"fmt"
	"strings"

	"github.com/evermore-events/backend/internal/models"
)

// Template ids understood by the email and WhatsApp adapters.
const (
	TemplateInvitation   = "invitation"
	TemplateConfirmation = "rsvp_confirmation"
)

// Links builds guest-facing URLs.
type Links struct {
	PublicURL string
}

// Invitation returns the public invitation page for token.
func (l Links) Invitation(slug, token string) string {
	return strings.TrimRight(l.PublicURL, "/") + "/w/" + slug + "/invitations/" + token
}

func eventNames(events []models.InvitationEventView) string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.EventName)
	}
	return strings.Join(names, ", ")
}

func baseVariables(d *models.InvitationDetail, events []models.InvitationEventView, link string) map[string]string {
	vars := map[string]string{
		"guest_name":   d.Guest.FullName(),
		"first_name":   d.Guest.FirstName,
		"wedding_name": d.Wedding.Name,
		"events":       eventNames(events),
		"link":         link,
	}
	if d.Guest.InviteCode != nil {
		vars["invite_code"] = *d.Guest.InviteCode
	}
	if d.Wedding.EventDate != nil {
		vars["date"] = d.Wedding.EventDate.Format("Monday, January 2, 2006")
	}
	return vars
}

func invitationEmail(d *models.InvitationDetail, events []models.InvitationEventView, cfg models.WeddingConfig, link string) EmailMessage {
	vars := baseVariables(d, events, link)
	if cfg.InvitationCustomMessage != nil {
		vars["custom_message"] = *cfg.InvitationCustomMessage
	}
	return EmailMessage{
		To:         d.Guest.Email,
		Subject:    fmt.Sprintf("You're invited: %s", d.Wedding.Name),
		TemplateID: TemplateInvitation,
		Variables:  vars,
	}
}

func invitationSMS(d *models.InvitationDetail, events []models.InvitationEventView, link string) string {
	body := fmt.Sprintf("Hi %s, you're invited to %s (%s). RSVP: %s", d.Guest.FirstName, d.Wedding.Name, eventNames(events), link)
	if d.Guest.InviteCode != nil {
		body += " Code: " + *d.Guest.InviteCode
	}
	return body
}

func invitationWhatsApp(to string, d *models.InvitationDetail, events []models.InvitationEventView, cfg models.WeddingConfig, link string) WhatsAppMessage {
	template := TemplateInvitation
	if cfg.WhatsAppInvitationTemplate != nil {
		template = *cfg.WhatsAppInvitationTemplate
	}
	return WhatsAppMessage{To: to, TemplateID: template, Variables: baseVariables(d, events, link)}
}

func confirmationMessage(resp models.RSVPResponse, cfg models.WeddingConfig) string {
	if resp == models.ResponseAccepted {
		if cfg.RSVPAcceptedMessage != nil {
			return *cfg.RSVPAcceptedMessage
		}
		return "Thank you for your RSVP. We can't wait to celebrate with you!"
	}
	if cfg.RSVPDeclinedMessage != nil {
		return *cfg.RSVPDeclinedMessage
	}
	return "Thank you for letting us know. You'll be missed!"
}

func confirmationVariables(req ConfirmationRequest, cfg models.WeddingConfig, link string) map[string]string {
	vars := baseVariables(req.Detail, req.Detail.Events, link)
	vars["response"] = string(req.Response)
	vars["message"] = confirmationMessage(req.Response, cfg)
	if len(req.PassURLs) > 0 {
		vars["pass_links"] = strings.Join(req.PassURLs, "\n")
	}
	return vars
}

func confirmationText(req ConfirmationRequest, cfg models.WeddingConfig, link string) string {
	body := fmt.Sprintf("%s: RSVP %s received. %s %s", req.Detail.Wedding.Name, req.Response, confirmationMessage(req.Response, cfg), link)
	for _, u := range req.PassURLs {
		body += "\n" + u
	}
	return body
}
