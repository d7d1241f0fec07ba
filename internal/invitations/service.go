// Package invitations owns creation, update, deletion and per-event status transitions of
// invitations, plus token rotation and invite codes.
package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/cache"
	"github.com/evermore-events/backend/internal/headcount"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/utils"
)

var (
	// ErrNotFound covers missing rows and rows belonging to another wedding.
	ErrNotFound = errors.New("invitation not found")
	// ErrValidation wraps rejected admin input.
	ErrValidation = errors.New("invalid invitation request")
	// ErrGuestHasInvitation enforces one invitation per guest.
	ErrGuestHasInvitation = errors.New("guest already has an invitation")
)

// LiveEventInvitationsChanged is published to the wedding live feed after any mutation.
const LiveEventInvitationsChanged = "invitations_changed"

// Store is the tenant-scoped persistence the service needs. Every method filters by weddingID.
type Store interface {
	CodeStore

	GetGuest(ctx context.Context, weddingID, guestID uuid.UUID) (*models.Guest, error)
	EventIDsInWedding(ctx context.Context, weddingID uuid.UUID, eventIDs []uuid.UUID) (map[uuid.UUID]bool, error)

	GetInvitation(ctx context.Context, weddingID, id uuid.UUID) (*models.Invitation, error)
	GetInvitationByGuest(ctx context.Context, weddingID, guestID uuid.UUID) (*models.Invitation, error)
	// CreateInvitation maps a guest_id unique violation to ErrGuestHasInvitation.
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	UpdateInvitationGuest(ctx context.Context, weddingID, id, guestID uuid.UUID) error
	SetInvitationToken(ctx context.Context, weddingID, id uuid.UUID, token string) error

	ListInvitationEvents(ctx context.Context, weddingID, invitationID uuid.UUID) ([]models.InvitationEvent, error)
	GetInvitationEvent(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationEvent, error)
	// ReplaceEvents deletes the invitation's rows for the given events' EventIDs (or all rows
	// when replaceAll) and inserts events, in one transaction.
	ReplaceEvents(ctx context.Context, weddingID, invitationID uuid.UUID, events []models.InvitationEvent, replaceAll bool) error
	UpdateInvitationEvent(ctx context.Context, ev *models.InvitationEvent) error
	UpdateHeadcounts(ctx context.Context, weddingID uuid.UUID, headcounts map[uuid.UUID]int) error
	SetEventToken(ctx context.Context, weddingID, invitationEventID uuid.UUID, token string) error

	DeleteRSVPHistory(ctx context.Context, weddingID uuid.UUID, invitationIDs []uuid.UUID) (int64, error)
	DeleteInvitationEvents(ctx context.Context, weddingID uuid.UUID, invitationIDs []uuid.UUID) (int64, error)
	DeleteInvitations(ctx context.Context, weddingID uuid.UUID, ids []uuid.UUID) (int64, error)

	ListInvitations(ctx context.Context, weddingID uuid.UUID, p ListParams) (models.Page[models.InvitationSummary], error)
	GetDetail(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error)
}

// ConfigSource resolves wedding configuration.
type ConfigSource interface {
	GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error)
}

// Auditor is the audit sink.
type Auditor interface {
	Log(ctx context.Context, e audit.Entry) besteffort.Outcome
}

// Publisher pushes change notifications to connected admin dashboards.
type Publisher interface {
	Publish(ctx context.Context, weddingID uuid.UUID, event string, payload interface{})
}

// ListParams filters the paginated admin list.
type ListParams struct {
	Page     int
	PageSize int
	Search   string
	Status   models.InvitationStatus
}

// CacheKey is the logical list-cache key for p within a wedding.
func (p ListParams) CacheKey(weddingID uuid.UUID) string {
	return cache.Key("invitations:"+weddingID.String(), map[string]string{
		"page":      fmt.Sprint(p.Page),
		"page_size": fmt.Sprint(p.PageSize),
		"search":    p.Search,
		"status":    string(p.Status),
	})
}

// UpdateInput is a partial update. A nil Events leaves events untouched; a non-nil Events
// replaces them all with fresh tokens.
type UpdateInput struct {
	GuestID *uuid.UUID         `json:"guest_id"`
	Events  *[]models.EventDef `json:"events"`
}

// EventEdit is an admin edit of one invitation event. Nil fields are unchanged.
type EventEdit struct {
	Status              *models.InvitationStatus `json:"status"`
	Headcount           *int                     `json:"headcount"`
	DietaryRestrictions *string                  `json:"dietary_restrictions"`
	DietaryInformation  *string                  `json:"dietary_information"`
	FoodChoice          *string                  `json:"food_choice"`
}

// CreateResult summarises CreateForGuests.
type CreateResult struct {
	Invitations []models.Invitation `json:"invitations"`
	Created     int                 `json:"created"`
	Reused      int                 `json:"reused"`
	Events      int                 `json:"events"`
}

// Service implements the invitation lifecycle.
type Service struct {
	store     Store
	configs   ConfigSource
	codes     *CodeGenerator
	cache     *cache.Cache
	auditor   Auditor
	publisher Publisher
	listTTL   time.Duration
	logger    *zap.Logger
	newToken  func() (string, error)
}

// NewService creates an invitation service. c and publisher may be nil.
func NewService(store Store, configs ConfigSource, c *cache.Cache, auditor Auditor, publisher Publisher, listTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		configs:   configs,
		codes:     NewCodeGenerator(store, DefaultCodeRetries),
		cache:     c,
		auditor:   auditor,
		publisher: publisher,
		listTTL:   listTTL,
		logger:    logger,
		newToken:  utils.RandomToken,
	}
}

// Codes exposes the invite code generator (used by the backfill).
func (s *Service) Codes() *CodeGenerator { return s.codes }

// CreateForGuests ensures each guest has an invite code and an invitation, then replaces
// that invitation's rows for the requested events. Headcounts are clamped per guest.
func (s *Service) CreateForGuests(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, guestIDs []uuid.UUID, defs []models.EventDef) (*CreateResult, error) {
	if len(guestIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one guest is required", ErrValidation)
	}
	if err := s.validateDefs(ctx, weddingID, defs); err != nil {
		return nil, err
	}
	guests := make([]*models.Guest, 0, len(guestIDs))
	seen := make(map[uuid.UUID]bool, len(guestIDs))
	for _, id := range guestIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		g, err := s.store.GetGuest(ctx, weddingID, id)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: guest %s does not belong to this wedding", ErrValidation, id)
		}
		if err != nil {
			return nil, fmt.Errorf("load guest: %w", err)
		}
		guests = append(guests, g)
	}
	cfg, err := s.configs.GetConfig(ctx, weddingID)
	if err != nil {
		return nil, err
	}

	res := &CreateResult{}
	defer func() {
		if len(res.Invitations) > 0 {
			s.afterMutation(ctx, weddingID)
		}
	}()
	for _, g := range guests {
		if _, _, err := s.codes.Ensure(ctx, weddingID, g.ID); err != nil {
			return res, fmt.Errorf("invite code for guest %s: %w", g.ID, err)
		}
		inv, created, err := s.ensureInvitation(ctx, weddingID, g.ID)
		if err != nil {
			return res, err
		}
		events, err := s.buildEvents(weddingID, inv.ID, defs, g, cfg)
		if err != nil {
			return res, err
		}
		if err := s.store.ReplaceEvents(ctx, weddingID, inv.ID, events, false); err != nil {
			return res, fmt.Errorf("replace invitation events: %w", err)
		}
		res.Invitations = append(res.Invitations, *inv)
		res.Events += len(events)
		if created {
			res.Created++
		} else {
			res.Reused++
		}
	}

	s.auditor.Log(ctx, audit.Entry{
		WeddingID: weddingID,
		Action:    audit.ActionInvitationsCreated,
		Actor:     actor,
		Details: map[string]interface{}{
			"guests":  len(guests),
			"events":  len(defs),
			"created": res.Created,
			"reused":  res.Reused,
		},
	})
	return res, nil
}

// ensureInvitation returns the guest's invitation, creating it if needed.
func (s *Service) ensureInvitation(ctx context.Context, weddingID, guestID uuid.UUID) (*models.Invitation, bool, error) {
	inv, err := s.store.GetInvitationByGuest(ctx, weddingID, guestID)
	if err == nil {
		return inv, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("load invitation: %w", err)
	}
	token, err := s.newToken()
	if err != nil {
		return nil, false, fmt.Errorf("generate token: %w", err)
	}
	inv = &models.Invitation{WeddingID: weddingID, GuestID: guestID, Token: token}
	err = s.store.CreateInvitation(ctx, inv)
	if errors.Is(err, ErrGuestHasInvitation) {
		// Lost a race with a concurrent create; reuse the winner's row.
		inv, err = s.store.GetInvitationByGuest(ctx, weddingID, guestID)
		if err != nil {
			return nil, false, fmt.Errorf("load invitation: %w", err)
		}
		return inv, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create invitation: %w", err)
	}
	return inv, true, nil
}

func (s *Service) validateDefs(ctx context.Context, weddingID uuid.UUID, defs []models.EventDef) error {
	if len(defs) == 0 {
		return fmt.Errorf("%w: at least one event is required", ErrValidation)
	}
	ids := make([]uuid.UUID, 0, len(defs))
	seen := make(map[uuid.UUID]bool, len(defs))
	for _, d := range defs {
		if d.EventID == uuid.Nil {
			return fmt.Errorf("%w: event_id is required", ErrValidation)
		}
		if seen[d.EventID] {
			return fmt.Errorf("%w: event %s listed twice", ErrValidation, d.EventID)
		}
		if d.Status != "" && !d.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrValidation, d.Status)
		}
		seen[d.EventID] = true
		ids = append(ids, d.EventID)
	}
	found, err := s.store.EventIDsInWedding(ctx, weddingID, ids)
	if err != nil {
		return fmt.Errorf("check events: %w", err)
	}
	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("%w: event %s does not belong to this wedding", ErrValidation, id)
		}
	}
	return nil
}

// buildEvents clamps headcounts for g and assigns fresh event tokens.
func (s *Service) buildEvents(weddingID, invitationID uuid.UUID, defs []models.EventDef, g *models.Guest, cfg models.WeddingConfig) ([]models.InvitationEvent, error) {
	clamped := headcount.ValidateDefs(append([]models.EventDef(nil), defs...), g.TotalGuests, cfg)
	out := make([]models.InvitationEvent, 0, len(clamped))
	for _, d := range clamped {
		token, err := s.newToken()
		if err != nil {
			return nil, fmt.Errorf("generate event token: %w", err)
		}
		status := d.Status
		if status == "" {
			status = models.StatusPending
		}
		out = append(out, models.InvitationEvent{
			WeddingID:    weddingID,
			InvitationID: invitationID,
			EventID:      d.EventID,
			Status:       status,
			Headcount:    d.Headcount,
			EventToken:   token,
		})
	}
	return out, nil
}

// Update reassigns the guest and/or replaces all events. On reassignment without an events
// payload the existing headcounts are re-clamped to the new guest's cap.
func (s *Service) Update(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, id uuid.UUID, in UpdateInput) (*models.InvitationDetail, error) {
	inv, err := s.store.GetInvitation(ctx, weddingID, id)
	if err != nil {
		return nil, err
	}
	guestID := inv.GuestID
	reassigned := in.GuestID != nil && *in.GuestID != inv.GuestID
	if reassigned {
		guestID = *in.GuestID
	}
	guest, err := s.store.GetGuest(ctx, weddingID, guestID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: guest %s does not belong to this wedding", ErrValidation, guestID)
	}
	if err != nil {
		return nil, fmt.Errorf("load guest: %w", err)
	}
	if in.Events != nil {
		if err := s.validateDefs(ctx, weddingID, *in.Events); err != nil {
			return nil, err
		}
	}
	cfg, err := s.configs.GetConfig(ctx, weddingID)
	if err != nil {
		return nil, err
	}

	if reassigned {
		if _, err := s.store.GetInvitationByGuest(ctx, weddingID, guestID); err == nil {
			return nil, ErrGuestHasInvitation
		} else if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("load invitation: %w", err)
		}
		if err := s.store.UpdateInvitationGuest(ctx, weddingID, id, guestID); err != nil {
			return nil, err
		}
	}

	switch {
	case in.Events != nil:
		events, err := s.buildEvents(weddingID, id, *in.Events, guest, cfg)
		if err != nil {
			return nil, err
		}
		if err := s.store.ReplaceEvents(ctx, weddingID, id, events, true); err != nil {
			return nil, fmt.Errorf("replace invitation events: %w", err)
		}
	case reassigned:
		if err := s.reclamp(ctx, weddingID, id, guest, cfg); err != nil {
			return nil, err
		}
	}

	s.afterMutation(ctx, weddingID)
	details := map[string]interface{}{"invitation_id": id}
	if reassigned {
		details["guest_reassigned"] = true
	}
	if in.Events != nil {
		details["events"] = len(*in.Events)
	}
	s.auditor.Log(ctx, audit.Entry{WeddingID: weddingID, Action: audit.ActionInvitationUpdated, Actor: actor, Details: details})
	return s.store.GetDetail(ctx, weddingID, id)
}

func (s *Service) reclamp(ctx context.Context, weddingID, invitationID uuid.UUID, guest *models.Guest, cfg models.WeddingConfig) error {
	events, err := s.store.ListInvitationEvents(ctx, weddingID, invitationID)
	if err != nil {
		return fmt.Errorf("load invitation events: %w", err)
	}
	changed := make(map[uuid.UUID]int)
	for _, e := range events {
		if n := headcount.Clamp(e.Headcount, guest.TotalGuests, cfg); n != e.Headcount {
			changed[e.ID] = n
		}
	}
	if len(changed) == 0 {
		return nil
	}
	if err := s.store.UpdateHeadcounts(ctx, weddingID, changed); err != nil {
		return fmt.Errorf("re-clamp headcounts: %w", err)
	}
	return nil
}

// UpdateEvent applies an admin edit. Headcount is re-clamped even for status-only edits and
// dietary fields are cleared unless the resulting status is accepted.
func (s *Service) UpdateEvent(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, invitationEventID uuid.UUID, edit EventEdit) (*models.InvitationEvent, error) {
	if edit.Status != nil && !edit.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *edit.Status)
	}
	ev, err := s.store.GetInvitationEvent(ctx, weddingID, invitationEventID)
	if err != nil {
		return nil, err
	}
	inv, err := s.store.GetInvitation(ctx, weddingID, ev.InvitationID)
	if err != nil {
		return nil, err
	}
	guest, err := s.store.GetGuest(ctx, weddingID, inv.GuestID)
	if err != nil {
		return nil, fmt.Errorf("load guest: %w", err)
	}
	cfg, err := s.configs.GetConfig(ctx, weddingID)
	if err != nil {
		return nil, err
	}

	prevStatus := ev.Status
	if edit.Status != nil {
		ev.Status = *edit.Status
	}
	requested := ev.Headcount
	if edit.Headcount != nil {
		requested = *edit.Headcount
	}
	ev.Headcount = headcount.Clamp(requested, guest.TotalGuests, cfg)
	if edit.DietaryRestrictions != nil {
		ev.DietaryRestrictions = emptyToNil(*edit.DietaryRestrictions)
	}
	if edit.DietaryInformation != nil {
		ev.DietaryInformation = emptyToNil(*edit.DietaryInformation)
	}
	if edit.FoodChoice != nil {
		ev.FoodChoice = emptyToNil(*edit.FoodChoice)
	}
	if ev.Status != models.StatusAccepted {
		ev.ClearDietary()
	}
	if err := s.store.UpdateInvitationEvent(ctx, ev); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, weddingID)
	s.auditor.Log(ctx, audit.Entry{
		WeddingID: weddingID,
		Action:    audit.ActionInvitationEventEdit,
		Actor:     actor,
		Details: map[string]interface{}{
			"invitation_event_id": ev.ID,
			"from_status":         prevStatus,
			"to_status":           ev.Status,
			"headcount":           ev.Headcount,
		},
	})
	return ev, nil
}

// Delete removes invitations in dependency order: RSVP history, invitation events, then
// invitations. A failed history delete is logged and does not stop the rest.
func (s *Service) Delete(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no invitation ids given", ErrValidation)
	}
	if _, err := s.store.DeleteRSVPHistory(ctx, weddingID, ids); err != nil {
		s.logger.Warn("delete rsvp history failed, continuing", zap.Error(err), zap.String("wedding_id", weddingID.String()))
	}
	if _, err := s.store.DeleteInvitationEvents(ctx, weddingID, ids); err != nil {
		return 0, fmt.Errorf("delete invitation events: %w", err)
	}
	n, err := s.store.DeleteInvitations(ctx, weddingID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete invitations: %w", err)
	}
	s.afterMutation(ctx, weddingID)
	s.auditor.Log(ctx, audit.Entry{
		WeddingID: weddingID,
		Action:    audit.ActionInvitationsDeleted,
		Actor:     actor,
		Details:   map[string]interface{}{"requested": len(ids), "deleted": n},
	})
	return n, nil
}

// RegenerateInviteToken rotates the invitation's bearer token. The old link stops working
// immediately. Only the new token is audited.
func (s *Service) RegenerateInviteToken(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, id uuid.UUID) (string, error) {
	token, err := s.newToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := s.store.SetInvitationToken(ctx, weddingID, id, token); err != nil {
		return "", err
	}
	s.afterMutation(ctx, weddingID)
	s.auditor.Log(ctx, audit.Entry{
		WeddingID: weddingID,
		Action:    audit.ActionInviteTokenRotated,
		Actor:     actor,
		Details:   map[string]interface{}{"invitation_id": id, "token": token},
	})
	return token, nil
}

// RegenerateEventToken rotates one invitation event's token without touching its status.
func (s *Service) RegenerateEventToken(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, invitationEventID uuid.UUID) (string, error) {
	token, err := s.newToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := s.store.SetEventToken(ctx, weddingID, invitationEventID, token); err != nil {
		return "", err
	}
	s.afterMutation(ctx, weddingID)
	s.auditor.Log(ctx, audit.Entry{
		WeddingID: weddingID,
		Action:    audit.ActionEventTokenRotated,
		Actor:     actor,
		Details:   map[string]interface{}{"invitation_event_id": invitationEventID, "token": token},
	})
	return token, nil
}

// List returns a page of invitations through the list cache.
func (s *Service) List(ctx context.Context, weddingID uuid.UUID, p ListParams) (models.Page[models.InvitationSummary], error) {
	return cache.JSON(ctx, s.cache, p.CacheKey(weddingID), s.listTTL, func(ctx context.Context) (models.Page[models.InvitationSummary], error) {
		return s.store.ListInvitations(ctx, weddingID, p)
	})
}

// Get returns the invitation with its guest, wedding and events, each with its latest RSVP.
func (s *Service) Get(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error) {
	return s.store.GetDetail(ctx, weddingID, id)
}

func (s *Service) afterMutation(ctx context.Context, weddingID uuid.UUID) {
	s.cache.BumpNamespaceVersion(ctx)
	if s.publisher != nil {
		s.publisher.Publish(ctx, weddingID, LiveEventInvitationsChanged, nil)
	}
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
