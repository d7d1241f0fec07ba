// Package notifications picks delivery channels for an invitation, drives the email, SMS and
// WhatsApp adapters with per-channel isolation, and records every attempt.
package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Channel outcome statuses. Skipped is not an error: it counts toward AllSuccessful but not
// toward AnySuccessful.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

var (
	// ErrNotFound is returned when the invitation does not exist in the wedding.
	ErrNotFound = errors.New("invitation not found")
	// ErrNoEvents is returned when none of the requested events are on the invitation.
	ErrNoEvents = errors.New("none of the requested events are on this invitation")
	// ErrValidation wraps malformed requests (unknown channel names).
	ErrValidation = errors.New("invalid notification request")
)

// ChannelResult is the outcome of one channel for one invitation.
type ChannelResult struct {
	Channel     string `json:"channel"`
	Status      string `json:"status"`
	MessageID   string `json:"message_id,omitempty"`
	Error       string `json:"error,omitempty"`
	Reason      string `json:"reason,omitempty"`
	RateLimited bool   `json:"rate_limited,omitempty"`
}

// OrchestrationResult aggregates all channel outcomes for one invitation.
type OrchestrationResult struct {
	InvitationID  uuid.UUID       `json:"invitation_id"`
	GuestID       uuid.UUID       `json:"guest_id"`
	GuestName     string          `json:"guest_name"`
	Results       []ChannelResult `json:"results"`
	AllSuccessful bool            `json:"all_successful"`
	AnySuccessful bool            `json:"any_successful"`
}

func (r *OrchestrationResult) add(cr ChannelResult) {
	r.Results = append(r.Results, cr)
}

// finish computes the aggregate flags.
func (r *OrchestrationResult) finish() {
	r.AllSuccessful = true
	r.AnySuccessful = false
	for _, cr := range r.Results {
		switch cr.Status {
		case StatusSuccess:
			r.AnySuccessful = true
		case StatusFailed:
			r.AllSuccessful = false
		}
	}
}

// RateLimited reports whether at least one channel was attempted and every attempt hit the
// daily limit.
func (r *OrchestrationResult) RateLimited() bool {
	attempted := 0
	for _, cr := range r.Results {
		if cr.Status == StatusSkipped {
			continue
		}
		attempted++
		if !cr.RateLimited {
			return false
		}
	}
	return attempted > 0
}

// SendResult is what every adapter returns. Success false with Err set is a delivery failure.
type SendResult struct {
	Success   bool
	MessageID string
	Err       error
}

// Failed builds a failed SendResult.
func Failed(err error) SendResult { return SendResult{Err: err} }

// Attachment is a file attached to an email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailMessage is rendered by the email adapter from TemplateID and Variables.
type EmailMessage struct {
	To          string
	Subject     string
	TemplateID  string
	Variables   map[string]string
	Attachments []Attachment
}

// WhatsAppMessage carries either a freeform Body or a TemplateID with Variables.
// Invitations always use the template path.
type WhatsAppMessage struct {
	To         string // E.164
	Body       string
	TemplateID string
	Variables  map[string]string
}

// EmailSender delivers email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) SendResult
}

// SMSSender delivers SMS to a pre-validated E.164 number.
type SMSSender interface {
	Send(ctx context.Context, to, body string) SendResult
}

// WhatsAppSender delivers WhatsApp messages to a pre-validated E.164 number.
type WhatsAppSender interface {
	Send(ctx context.Context, msg WhatsAppMessage) SendResult
}

// RegistrationChecker approximates whether a number is reachable on WhatsApp.
type RegistrationChecker interface {
	IsRegistered(ctx context.Context, e164 string) (bool, error)
}
