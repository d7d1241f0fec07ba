// Package audit records mutating actions. Writes are best-effort: a failed insert is logged
// and never reaches the caller.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/models"
)

// Actions written by the core services.
const (
	ActionConfigUpdated       = "config_updated"
	ActionConfigReset         = "config_reset"
	ActionInvitationsCreated  = "invitations_created"
	ActionInvitationUpdated   = "invitation_updated"
	ActionInvitationEventEdit = "invitation_event_updated"
	ActionInvitationsDeleted  = "invitations_deleted"
	ActionInviteTokenRotated  = "invite_token_regenerated"
	ActionEventTokenRotated   = "event_token_regenerated"
	ActionNotificationSent    = "notification_sent"
	ActionRSVPSubmitted       = "rsvp_submitted"
	ActionRSVPDeclineMessage  = "rsvp_decline_message"
	ActionInviteCodeBackfill  = "invite_code_backfill"
	ActionGuestsImported      = "guests_imported"
	ActionGuestDeleted        = "guest_deleted"
)

// writeTimeout bounds one audit insert. It is detached from the request context so a client
// disconnect does not drop the record.
const writeTimeout = 5 * time.Second

// Entry is one audit record to write. Details must not carry full message payloads.
type Entry struct {
	WeddingID uuid.UUID
	Action    string
	Details   map[string]interface{}
	Actor     *uuid.UUID
	IP        string
	UserAgent string
}

// Store persists audit rows.
type Store interface {
	Insert(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, weddingID uuid.UUID, action string, limit, offset int) ([]models.AuditLog, int, error)
}

// Writer is the audit sink shared by all services.
type Writer struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewWriter creates an audit writer.
func NewWriter(store Store, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, logger: logger, now: time.Now}
}

// Log writes entry. The returned outcome is informational only.
func (w *Writer) Log(ctx context.Context, e Entry) besteffort.Outcome {
	return besteffort.Run(ctx, w.logger, "audit:"+e.Action, func(ctx context.Context) error {
		var details json.RawMessage
		if len(e.Details) > 0 {
			b, err := json.Marshal(e.Details)
			if err != nil {
				return fmt.Errorf("marshal details: %w", err)
			}
			details = b
		}
		row := &models.AuditLog{
			Action:    e.Action,
			Details:   details,
			Actor:     e.Actor,
			IP:        e.IP,
			UserAgent: e.UserAgent,
			CreatedAt: w.now(),
		}
		if e.WeddingID != uuid.Nil {
			id := e.WeddingID
			row.WeddingID = &id
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		return w.store.Insert(ctx, row)
	})
}

// List returns audit rows for a wedding, newest first, and the total count.
func (w *Writer) List(ctx context.Context, weddingID uuid.UUID, action string, limit, offset int) ([]models.AuditLog, int, error) {
	return w.store.List(ctx, weddingID, action, limit, offset)
}
