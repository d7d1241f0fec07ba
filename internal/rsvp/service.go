// Package rsvp accepts guest responses: it resolves the invitation by invite code, applies the
// response to every event on it, records history and triggers passes and a confirmation.
package rsvp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/cache"
	"github.com/evermore-events/backend/internal/headcount"
	"github.com/evermore-events/backend/internal/invitations"
	"github.com/evermore-events/backend/internal/metrics"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/internal/notifications"
	"github.com/evermore-events/backend/internal/passes"
	"github.com/evermore-events/backend/internal/weddingconfig"
)

// Guest-facing errors. Their messages are safe to show as-is.
var (
	ErrInvalidInput = errors.New("we couldn't process your RSVP, please check your details and try again")

	// ErrNotFound also covers invite codes that belong to another wedding.
	ErrNotFound = errors.New("we couldn't find an invitation with that code")

	ErrRSVPClosed = errors.New("RSVPs for this wedding are closed")

	// ErrAccessCodeRequired is returned by View when the details need the guest's invite code.
	ErrAccessCodeRequired = errors.New("an invite code is required to view this invitation")
)

// LiveEventRSVPSubmitted is published to the wedding live feed.
const LiveEventRSVPSubmitted = "rsvp_submitted"

// Store is the RSVP persistence.
type Store interface {
	FindByInviteCode(ctx context.Context, code string) (weddingID, invitationID uuid.UUID, err error)
	FindByToken(ctx context.Context, weddingID uuid.UUID, token string) (uuid.UUID, error)
	ApplyResponses(ctx context.Context, weddingID uuid.UUID, updates []models.EventResponseUpdate) error
	InsertHistory(ctx context.Context, rec *models.RSVPRecord) error
}

// Loader loads the invitation detail.
type Loader interface {
	GetDetail(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error)
}

// ConfigSource resolves wedding configuration.
type ConfigSource interface {
	GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error)
}

// PassGenerator renders passes for accepted events.
type PassGenerator interface {
	Generate(ctx context.Context, d *models.InvitationDetail) ([]passes.Pass, error)
}

// Confirmer sends the RSVP confirmation.
type Confirmer interface {
	SendConfirmation(ctx context.Context, req notifications.ConfirmationRequest) (*notifications.OrchestrationResult, error)
}

// Auditor is the audit sink.
type Auditor interface {
	Log(ctx context.Context, e audit.Entry) besteffort.Outcome
}

// Publisher pushes to the admin live feed.
type Publisher interface {
	Publish(ctx context.Context, weddingID uuid.UUID, event string, payload interface{})
}

// Input is the guest's submission. Either InviteCode or, when the wedding does not require
// access codes, Token identifies the invitation.
type Input struct {
	InviteCode          string              `json:"invite_code" validate:"omitempty,len=8,alphanum"`
	Token               string              `json:"token" validate:"omitempty,max=128"`
	Response            models.RSVPResponse `json:"response" validate:"required,oneof=accepted declined"`
	PartySize           *int                `json:"party_size" validate:"omitempty,min=0,max=100"`
	DietaryRestrictions *string             `json:"dietary_restrictions" validate:"omitempty,max=500"`
	DietaryInformation  *string             `json:"dietary_information" validate:"omitempty,max=1000"`
	FoodChoice          *string             `json:"food_choice" validate:"omitempty,max=200"`
	Message             *string             `json:"message" validate:"omitempty,max=2000"`
	PreferredChannel    string              `json:"preferred_channel" validate:"omitempty,oneof=sms whatsapp"`
}

// Meta describes the request.
type Meta struct {
	UserID    *uuid.UUID
	IP        string
	UserAgent string
}

// EventOutcome is the stored state of one event after the submission.
type EventOutcome struct {
	InvitationEventID uuid.UUID               `json:"invitation_event_id"`
	EventName         string                  `json:"event_name"`
	Status            models.InvitationStatus `json:"status"`
	Headcount         int                     `json:"headcount"`
}

// PassLink is a stored pass.
type PassLink struct {
	EventName string `json:"event_name"`
	URL       string `json:"url"`
}

// Result is what the guest sees after a successful submission.
type Result struct {
	InvitationID     uuid.UUID           `json:"invitation_id"`
	GuestName        string              `json:"guest_name"`
	Response         models.RSVPResponse `json:"response"`
	Events           []EventOutcome      `json:"events"`
	Passes           []PassLink          `json:"passes,omitempty"`
	ConfirmationSent bool                `json:"confirmation_sent"`
}

// Outcome wraps a submission for the guest-facing caller.
type Outcome struct {
	Success bool    `json:"success"`
	Result  *Result `json:"result,omitempty"`
	Message string  `json:"message"`
}

// Service is the RSVP pipeline.
type Service struct {
	store     Store
	loader    Loader
	configs   ConfigSource
	passes    PassGenerator
	confirmer Confirmer
	auditor   Auditor
	publisher Publisher
	cache     *cache.Cache
	metrics   *metrics.Metrics
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// Deps wires the pipeline. Passes, Confirmer, Publisher, Cache and Metrics may be nil.
type Deps struct {
	Store     Store
	Loader    Loader
	Configs   ConfigSource
	Passes    PassGenerator
	Confirmer Confirmer
	Auditor   Auditor
	Publisher Publisher
	Cache     *cache.Cache
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// NewService creates the RSVP pipeline.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     d.Store,
		loader:    d.Loader,
		configs:   d.Configs,
		passes:    d.Passes,
		confirmer: d.Confirmer,
		auditor:   d.Auditor,
		publisher: d.Publisher,
		cache:     d.Cache,
		metrics:   d.Metrics,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Submit applies in to every event on the resolved invitation. Errors are the guest-facing
// sentinels above or an internal error. Pass, confirmation, history and audit failures never
// fail the submission.
func (s *Service) Submit(ctx context.Context, weddingID uuid.UUID, in Input, meta Meta) (*Outcome, error) {
	in.InviteCode = strings.ToUpper(strings.TrimSpace(in.InviteCode))
	in.Token = strings.TrimSpace(in.Token)
	err := s.validate.Struct(in)
	if err == nil && in.InviteCode == "" && in.Token == "" {
		err = errors.New("invite_code or token is required")
	}
	if err != nil {
		s.logger.Debug("rsvp rejected", zap.Error(err))
		s.metrics.RSVP("invalid")
		return nil, ErrInvalidInput
	}
	cfg, err := s.configs.GetConfig(ctx, weddingID)
	if err != nil {
		s.metrics.RSVP("error")
		return nil, fmt.Errorf("load config: %w", err)
	}
	invitationID, err := s.resolve(ctx, weddingID, in, cfg)
	if err != nil {
		s.metrics.RSVP(outcomeLabel(err))
		return nil, err
	}
	if err := s.checkOpen(cfg); err != nil {
		s.metrics.RSVP("closed")
		return nil, err
	}
	d, err := s.loader.GetDetail(ctx, weddingID, invitationID)
	if err != nil {
		if errors.Is(err, invitations.ErrNotFound) {
			s.metrics.RSVP("not_found")
			return nil, ErrNotFound
		}
		s.metrics.RSVP("error")
		return nil, fmt.Errorf("load invitation: %w", err)
	}

	updates := buildUpdates(d, in, cfg)
	if err := s.store.ApplyResponses(ctx, weddingID, updates); err != nil {
		s.metrics.RSVP("error")
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("apply responses: %w", err)
	}
	applyToDetail(d, updates)
	s.recordHistory(ctx, weddingID, in, meta, updates)

	res := &Result{InvitationID: d.Invitation.ID, GuestName: d.Guest.FullName(), Response: in.Response}
	for _, ev := range d.Events {
		res.Events = append(res.Events, EventOutcome{InvitationEventID: ev.ID, EventName: ev.EventName, Status: ev.Status, Headcount: ev.Headcount})
	}

	var generated []passes.Pass
	if in.Response == models.ResponseAccepted && s.passes != nil {
		besteffort.Run(ctx, s.logger, "rsvp:passes", func(ctx context.Context) error {
			var err error
			generated, err = s.passes.Generate(ctx, d)
			return err
		})
		for _, p := range generated {
			if p.URL != "" {
				res.Passes = append(res.Passes, PassLink{EventName: p.EventName, URL: p.URL})
			}
		}
	}
	if s.confirmer != nil {
		besteffort.Run(ctx, s.logger, "rsvp:confirmation", func(ctx context.Context) error {
			r, err := s.confirmer.SendConfirmation(ctx, confirmationRequest(d, in, generated))
			if err != nil {
				return err
			}
			res.ConfirmationSent = r.AnySuccessful
			return nil
		})
	}

	s.audit(ctx, d, in, meta)
	s.cache.BumpNamespaceVersion(ctx)
	if s.publisher != nil {
		s.publisher.Publish(ctx, weddingID, LiveEventRSVPSubmitted, map[string]interface{}{
			"invitation_id": d.Invitation.ID,
			"guest_name":    d.Guest.FullName(),
			"response":      in.Response,
			"events":        len(updates),
		})
	}
	s.metrics.RSVP(string(in.Response))
	return &Outcome{Success: true, Result: res, Message: guestMessage(d, in.Response, cfg)}, nil
}

// resolve maps the submission to an invitation in weddingID. A code from another wedding is
// indistinguishable from an unknown code.
func (s *Service) resolve(ctx context.Context, weddingID uuid.UUID, in Input, cfg models.WeddingConfig) (uuid.UUID, error) {
	if in.InviteCode == "" {
		if cfg.AccessCodeEnabled && cfg.AccessCodeRequiredRSVP {
			return uuid.Nil, ErrInvalidInput
		}
		id, err := s.store.FindByToken(ctx, weddingID, in.Token)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return uuid.Nil, fmt.Errorf("find invitation: %w", err)
		}
		return id, err
	}
	owner, id, err := s.store.FindByInviteCode(ctx, in.InviteCode)
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("find invitation: %w", err)
	}
	if owner != weddingID {
		s.logger.Info("invite code presented to another wedding", zap.String("wedding_id", weddingID.String()))
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

// checkOpen enforces rsvp_enabled and the cutoff date.
func (s *Service) checkOpen(cfg models.WeddingConfig) error {
	if !weddingconfig.RSVPOpen(cfg, s.now()) {
		return ErrRSVPClosed
	}
	return nil
}

// buildUpdates produces one write per event: the same response everywhere, headcount
// re-clamped, dietary fields only on acceptance and only when enabled.
func buildUpdates(d *models.InvitationDetail, in Input, cfg models.WeddingConfig) []models.EventResponseUpdate {
	status := in.Response.Status()
	out := make([]models.EventResponseUpdate, 0, len(d.Events))
	for _, ev := range d.Events {
		requested := 1
		if in.PartySize != nil {
			requested = *in.PartySize
		}
		u := models.EventResponseUpdate{
			InvitationEventID: ev.ID,
			Status:            status,
			Headcount:         headcount.Clamp(requested, d.Guest.TotalGuests, cfg),
		}
		if status == models.StatusAccepted {
			if cfg.DietaryRestrictionsEnabled {
				u.DietaryRestrictions = trimmed(in.DietaryRestrictions)
				u.DietaryInformation = trimmed(in.DietaryInformation)
			}
			if cfg.FoodChoicesEnabled {
				u.FoodChoice = trimmed(in.FoodChoice)
			}
		}
		out = append(out, u)
	}
	return out
}

func applyToDetail(d *models.InvitationDetail, updates []models.EventResponseUpdate) {
	byID := make(map[uuid.UUID]models.EventResponseUpdate, len(updates))
	for _, u := range updates {
		byID[u.InvitationEventID] = u
	}
	for i := range d.Events {
		u, ok := byID[d.Events[i].ID]
		if !ok {
			continue
		}
		ev := &d.Events[i]
		ev.Status = u.Status
		ev.Headcount = u.Headcount
		ev.DietaryRestrictions = u.DietaryRestrictions
		ev.DietaryInformation = u.DietaryInformation
		ev.FoodChoice = u.FoodChoice
	}
}

func (s *Service) recordHistory(ctx context.Context, weddingID uuid.UUID, in Input, meta Meta, updates []models.EventResponseUpdate) {
	msg := trimmed(in.Message)
	for _, u := range updates {
		rec := &models.RSVPRecord{
			WeddingID:           weddingID,
			InvitationEventID:   u.InvitationEventID,
			Response:            in.Response,
			PartySize:           u.Headcount,
			Message:             msg,
			DietaryRestrictions: u.DietaryRestrictions,
			FoodChoice:          u.FoodChoice,
			UserID:              meta.UserID,
			IP:                  meta.IP,
			UserAgent:           meta.UserAgent,
		}
		besteffort.Run(ctx, s.logger, "rsvp:history", func(ctx context.Context) error {
			return s.store.InsertHistory(ctx, rec)
		})
	}
}

func (s *Service) audit(ctx context.Context, d *models.InvitationDetail, in Input, meta Meta) {
	if s.auditor == nil {
		return
	}
	base := audit.Entry{WeddingID: d.Wedding.ID, Actor: meta.UserID, IP: meta.IP, UserAgent: meta.UserAgent}

	e := base
	e.Action = audit.ActionRSVPSubmitted
	e.Details = map[string]interface{}{
		"invitation_id": d.Invitation.ID,
		"guest_id":      d.Guest.ID,
		"response":      in.Response,
		"events":        len(d.Events),
	}
	s.auditor.Log(ctx, e)

	if in.Response == models.ResponseDeclined {
		if msg := trimmed(in.Message); msg != nil {
			e := base
			e.Action = audit.ActionRSVPDeclineMessage
			e.Details = map[string]interface{}{
				"invitation_id": d.Invitation.ID,
				"guest_id":      d.Guest.ID,
				"message":       *msg,
			}
			s.auditor.Log(ctx, e)
		}
	}
}

func confirmationRequest(d *models.InvitationDetail, in Input, generated []passes.Pass) notifications.ConfirmationRequest {
	req := notifications.ConfirmationRequest{Detail: d, Response: in.Response, PreferredChannel: in.PreferredChannel}
	for _, p := range generated {
		if p.URL != "" {
			req.PassURLs = append(req.PassURLs, p.URL)
		}
		req.Attachments = append(req.Attachments, notifications.Attachment{
			Filename:    p.Filename(),
			ContentType: "image/png",
			Data:        p.PNG,
		})
	}
	return req
}

// guestMessage tells the guest whether to expect a follow-up.
func guestMessage(d *models.InvitationDetail, resp models.RSVPResponse, cfg models.WeddingConfig) string {
	var b strings.Builder
	if resp == models.ResponseAccepted {
		b.WriteString("Thank you! Your RSVP has been recorded.")
	} else {
		b.WriteString("Thank you for letting us know.")
	}
	contactable := (cfg.EmailNotificationsEnabled && d.Guest.HasEmail()) ||
		((cfg.SMSNotificationsEnabled || cfg.WhatsAppNotificationsEnabled) && d.Guest.HasPhone())
	if contactable {
		b.WriteString(" A confirmation is on its way to you.")
	} else {
		b.WriteString(" Please keep this page for your records.")
	}
	return b.String()
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	}
	return "error"
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
