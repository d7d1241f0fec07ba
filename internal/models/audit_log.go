package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only record of a mutating action.
type AuditLog struct {
	ID        uuid.UUID       `json:"id"`
	WeddingID *uuid.UUID      `json:"wedding_id,omitempty"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details,omitempty"`
	Actor     *uuid.UUID      `json:"actor,omitempty"`
	IP        string          `json:"ip,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
