package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationLog records one attempted send. It is the substrate of the daily rate limit.
type NotificationLog struct {
	ID              uuid.UUID  `json:"id"`
	WeddingID       uuid.UUID  `json:"wedding_id"`
	InvitationToken string     `json:"-"`
	GuestID         *uuid.UUID `json:"guest_id,omitempty"`
	Channel         string     `json:"channel"`
	Kind            string     `json:"kind"`
	Recipient       string     `json:"recipient"`
	Success         bool       `json:"success"`
	MessageID       string     `json:"message_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	SentAt          time.Time  `json:"sent_at"`
}

// Notification kinds.
const (
	NotificationKindInvitation   = "invitation"
	NotificationKindConfirmation = "rsvp_confirmation"
)

// NotificationStats aggregates notification_logs for dashboards.
type NotificationStats struct {
	Channel string `json:"channel"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}
