package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/invitations"
	"github.com/evermore-events/backend/internal/metrics"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/internal/phone"
	"github.com/evermore-events/backend/internal/ratelimit"
)

// InvitationLoader loads invitation detail DTOs, tenant scoped.
type InvitationLoader interface {
	GetDetail(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error)
	ListInvitationIDs(ctx context.Context, weddingID uuid.UUID) ([]uuid.UUID, error)
}

// ConfigSource resolves wedding configuration.
type ConfigSource interface {
	GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error)
}

// RateGate enforces the per-invitation daily limit.
type RateGate interface {
	Check(ctx context.Context, weddingID uuid.UUID, token, channel string) error
}

// LogStore appends notification_logs rows.
type LogStore interface {
	Insert(ctx context.Context, l *models.NotificationLog) error
}

// Auditor is the audit sink.
type Auditor interface {
	Log(ctx context.Context, e audit.Entry) besteffort.Outcome
}

// Deps wires the orchestrator. Nil senders make their channel fail with "not configured";
// a nil Checker treats every number as unregistered.
type Deps struct {
	Loader             InvitationLoader
	Configs            ConfigSource
	Gate               RateGate
	Logs               LogStore
	Email              EmailSender
	SMS                SMSSender
	WhatsApp           WhatsAppSender
	Checker            RegistrationChecker
	Auditor            Auditor
	Metrics            *metrics.Metrics
	Links              Links
	DefaultCountryCode string
	Logger             *zap.Logger
}

// Service is the notification orchestrator.
type Service struct {
	Deps
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the orchestrator.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Deps: d, logger: logger, now: time.Now}
}

// Request asks for one invitation to be notified. Empty EventIDs means every event on the
// invitation; empty Channels means the channels enabled in config.
type Request struct {
	WeddingID       uuid.UUID   `json:"-"`
	InvitationID    uuid.UUID   `json:"invitation_id"`
	EventIDs        []uuid.UUID `json:"event_ids"`
	Channels        []string    `json:"channels"`
	IgnoreRateLimit bool        `json:"ignore_rate_limit"`
	Actor           *uuid.UUID  `json:"-"`
}

// SendInvitationNotification selects channels and sends the invitation through each.
// Only a missing invitation, no matching events or a bad request is an error; every channel
// outcome, including failures, is reported in the result.
func (s *Service) SendInvitationNotification(ctx context.Context, req Request) (*OrchestrationResult, error) {
	cfg, err := s.Configs.GetConfig(ctx, req.WeddingID)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	channels, err := selectChannels(req.Channels, cfg)
	if err != nil {
		return nil, err
	}
	d, err := s.load(ctx, req.WeddingID, req.InvitationID)
	if err != nil {
		return nil, err
	}
	events := filterEvents(d.Events, req.EventIDs)
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	res := newResult(d)
	link := s.Links.Invitation(d.Wedding.Slug, d.Invitation.Token)
	ds := &dispatch{s: s, detail: d, kind: models.NotificationKindInvitation, ignoreLimit: req.IgnoreRateLimit}

	if channels[models.ChannelEmail] {
		if d.Guest.HasEmail() {
			res.add(ds.email(ctx, invitationEmail(d, events, cfg, link)))
		} else {
			res.add(skipped(models.ChannelEmail, "guest has no email address"))
		}
	}
	s.routePhone(ctx, ds, res, channels[models.ChannelWhatsApp], channels[models.ChannelSMS], phoneContent{
		whatsapp: func(to string) WhatsAppMessage { return invitationWhatsApp(to, d, events, cfg, link) },
		sms:      invitationSMS(d, events, link),
	})
	res.finish()
	s.audit(ctx, req.WeddingID, req.Actor, ds.kind, res, req.IgnoreRateLimit)
	return res, nil
}

// ConfirmationRequest asks for an RSVP confirmation. PreferredChannel is the guest's choice
// among sms and whatsapp; email always wins when available.
type ConfirmationRequest struct {
	Detail           *models.InvitationDetail
	Response         models.RSVPResponse
	PreferredChannel string
	PassURLs         []string
	Attachments      []Attachment
}

// SendConfirmation sends one confirmation: email when possible, otherwise the preferred phone
// channel, otherwise the WhatsApp-then-SMS fallback. It is never rate limited.
func (s *Service) SendConfirmation(ctx context.Context, req ConfirmationRequest) (*OrchestrationResult, error) {
	d := req.Detail
	if d == nil {
		return nil, ErrNotFound
	}
	cfg, err := s.Configs.GetConfig(ctx, d.Wedding.ID)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	res := newResult(d)
	link := s.Links.Invitation(d.Wedding.Slug, d.Invitation.Token)
	ds := &dispatch{s: s, detail: d, kind: models.NotificationKindConfirmation, ignoreLimit: true}

	if cfg.EmailNotificationsEnabled && d.Guest.HasEmail() {
		res.add(ds.email(ctx, EmailMessage{
			To:          d.Guest.Email,
			Subject:     fmt.Sprintf("Your RSVP for %s", d.Wedding.Name),
			TemplateID:  TemplateConfirmation,
			Variables:   confirmationVariables(req, cfg, link),
			Attachments: req.Attachments,
		}))
	} else {
		wa, sms := cfg.WhatsAppNotificationsEnabled, cfg.SMSNotificationsEnabled
		if req.PreferredChannel == models.ChannelSMS && sms {
			wa = false
		}
		text := confirmationText(req, cfg, link)
		s.routePhone(ctx, ds, res, wa, sms, phoneContent{
			whatsapp: func(to string) WhatsAppMessage { return WhatsAppMessage{To: to, Body: text} },
			sms:      text,
		})
	}
	res.finish()
	s.audit(ctx, d.Wedding.ID, nil, ds.kind, res, false)
	return res, nil
}

// BulkRequest notifies many invitations. Empty InvitationIDs means every invitation in the wedding.
type BulkRequest struct {
	WeddingID       uuid.UUID
	InvitationIDs   []uuid.UUID
	Channels        []string
	IgnoreRateLimit bool
	Actor           *uuid.UUID
}

// BulkItem is the outcome for one invitation of a bulk run.
type BulkItem struct {
	InvitationID uuid.UUID            `json:"invitation_id"`
	Result       *OrchestrationResult `json:"result,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// BulkResult summarises a bulk run.
type BulkResult struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Items     []BulkItem  `json:"items"`
	// Remaining lists the invitations not reached when ctx was cancelled.
	Remaining []uuid.UUID `json:"remaining,omitempty"`
}

// SendBulk notifies invitations one at a time. A failing invitation never aborts the batch;
// cancellation of ctx stops before the next invitation and returns the partial result with
// the unreached ids in Remaining.
func (s *Service) SendBulk(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	ids := req.InvitationIDs
	if len(ids) == 0 {
		var err error
		if ids, err = s.Loader.ListInvitationIDs(ctx, req.WeddingID); err != nil {
			return nil, fmt.Errorf("list invitations: %w", err)
		}
	}
	out := &BulkResult{Items: make([]BulkItem, 0, len(ids))}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			out.Remaining = append([]uuid.UUID(nil), ids[i:]...)
			return out, err
		}
		item := BulkItem{InvitationID: id}
		var res *OrchestrationResult
		outcome := besteffort.Run(ctx, s.logger, "notify:"+id.String(), func(ctx context.Context) error {
			var err error
			res, err = s.SendInvitationNotification(ctx, Request{
				WeddingID:       req.WeddingID,
				InvitationID:    id,
				Channels:        req.Channels,
				IgnoreRateLimit: req.IgnoreRateLimit,
				Actor:           req.Actor,
			})
			return err
		})
		item.Result = res
		out.Total++
		switch {
		case outcome.Err != nil:
			item.Error = outcome.Err.Error()
			out.Failed++
		case res != nil && res.AnySuccessful:
			out.Succeeded++
		default:
			out.Failed++
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error) {
	d, err := s.Loader.GetDetail(ctx, weddingID, id)
	if errors.Is(err, invitations.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invitation: %w", err)
	}
	return d, nil
}

type phoneContent struct {
	whatsapp func(to string) WhatsAppMessage
	sms      string
}

// routePhone applies the phone channel rules: both enabled sends exactly one of WhatsApp
// (when registered) or SMS; WhatsApp alone never falls back; SMS alone always sends.
func (s *Service) routePhone(ctx context.Context, ds *dispatch, res *OrchestrationResult, wa, sms bool, content phoneContent) {
	if !wa && !sms {
		return
	}
	g := ds.detail.Guest
	if !g.HasPhone() {
		if wa {
			res.add(skipped(models.ChannelWhatsApp, "guest has no phone number"))
		}
		if sms {
			res.add(skipped(models.ChannelSMS, "guest has no phone number"))
		}
		return
	}
	to, err := phone.Normalize(g.Phone, s.DefaultCountryCode)
	if err != nil {
		if wa {
			res.add(ChannelResult{Channel: models.ChannelWhatsApp, Status: StatusFailed, Error: err.Error(), Reason: "invalid_phone"})
		}
		if sms {
			res.add(ChannelResult{Channel: models.ChannelSMS, Status: StatusFailed, Error: err.Error(), Reason: "invalid_phone"})
		}
		return
	}
	switch {
	case wa && sms:
		if s.registered(ctx, to) {
			res.add(ds.whatsapp(ctx, content.whatsapp(to)))
		} else {
			res.add(ds.sms(ctx, to, content.sms))
		}
	case wa:
		if s.registered(ctx, to) {
			res.add(ds.whatsapp(ctx, content.whatsapp(to)))
		} else {
			res.add(skipped(models.ChannelWhatsApp, "number is not registered on WhatsApp"))
		}
	default:
		res.add(ds.sms(ctx, to, content.sms))
	}
}

// registered treats lookup errors as not registered so the SMS fallback still runs.
func (s *Service) registered(ctx context.Context, e164 string) bool {
	if s.Checker == nil {
		return false
	}
	ok, err := s.Checker.IsRegistered(ctx, e164)
	if err != nil {
		s.logger.Warn("whatsapp registration check failed", zap.Error(err))
		return false
	}
	return ok
}

func (s *Service) audit(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, kind string, res *OrchestrationResult, ignoredLimit bool) {
	if s.Auditor == nil {
		return
	}
	channels := make(map[string]string, len(res.Results))
	for _, r := range res.Results {
		channels[r.Channel] = r.Status
	}
	s.Auditor.Log(ctx, audit.Entry{
		WeddingID: weddingID,
		Action:    audit.ActionNotificationSent,
		Actor:     actor,
		Details: map[string]interface{}{
			"invitation_id":     res.InvitationID,
			"kind":              kind,
			"channels":          channels,
			"any_successful":    res.AnySuccessful,
			"ignore_rate_limit": ignoredLimit,
		},
	})
}

// dispatch runs one channel attempt: rate gate, adapter call, log row, metric.
type dispatch struct {
	s           *Service
	detail      *models.InvitationDetail
	kind        string
	ignoreLimit bool
}

func (ds *dispatch) email(ctx context.Context, msg EmailMessage) ChannelResult {
	if ds.s.Email == nil {
		return notConfigured(models.ChannelEmail)
	}
	return ds.attempt(ctx, models.ChannelEmail, msg.To, func() SendResult { return ds.s.Email.Send(ctx, msg) })
}

func (ds *dispatch) sms(ctx context.Context, to, body string) ChannelResult {
	if ds.s.SMS == nil {
		return notConfigured(models.ChannelSMS)
	}
	return ds.attempt(ctx, models.ChannelSMS, to, func() SendResult { return ds.s.SMS.Send(ctx, to, body) })
}

func (ds *dispatch) whatsapp(ctx context.Context, msg WhatsAppMessage) ChannelResult {
	if ds.s.WhatsApp == nil {
		return notConfigured(models.ChannelWhatsApp)
	}
	return ds.attempt(ctx, models.ChannelWhatsApp, msg.To, func() SendResult { return ds.s.WhatsApp.Send(ctx, msg) })
}

func (ds *dispatch) attempt(ctx context.Context, channel, recipient string, send func() SendResult) ChannelResult {
	s := ds.s
	d := ds.detail
	if !ds.ignoreLimit && s.Gate != nil {
		if err := s.Gate.Check(ctx, d.Wedding.ID, d.Invitation.Token, channel); err != nil {
			s.Metrics.Notification(ds.kind, channel, "rate_limited")
			if errors.Is(err, ratelimit.ErrRateLimited) {
				return ChannelResult{Channel: channel, Status: StatusFailed, Error: err.Error(), Reason: "rate_limited", RateLimited: true}
			}
			return ChannelResult{Channel: channel, Status: StatusFailed, Error: "could not check rate limit", Reason: "rate_check_failed"}
		}
	}

	r := safeSend(send)
	cr := ChannelResult{Channel: channel, Status: StatusSuccess, MessageID: r.MessageID}
	if !r.Success {
		cr.Status = StatusFailed
		if r.Err != nil {
			cr.Error = r.Err.Error()
		} else {
			cr.Error = "send failed"
		}
	}
	s.Metrics.Notification(ds.kind, channel, cr.Status)

	guestID := d.Guest.ID
	entry := &models.NotificationLog{
		WeddingID:       d.Wedding.ID,
		InvitationToken: d.Invitation.Token,
		GuestID:         &guestID,
		Channel:         channel,
		Kind:            ds.kind,
		Recipient:       recipient,
		Success:         r.Success,
		MessageID:       r.MessageID,
		ErrorMessage:    cr.Error,
		SentAt:          s.now(),
	}
	if s.Logs != nil {
		besteffort.Run(ctx, s.logger, "notification_log", func(ctx context.Context) error {
			return s.Logs.Insert(ctx, entry)
		})
	}
	return cr
}

// safeSend converts an adapter panic into a failed result so other channels still run.
func safeSend(send func() SendResult) (r SendResult) {
	defer func() {
		if p := recover(); p != nil {
			r = Failed(fmt.Errorf("adapter panic: %v", p))
		}
	}()
	return send()
}

func newResult(d *models.InvitationDetail) *OrchestrationResult {
	return &OrchestrationResult{
		InvitationID: d.Invitation.ID,
		GuestID:      d.Guest.ID,
		GuestName:    d.Guest.FullName(),
		Results:      []ChannelResult{},
	}
}

func skipped(channel, reason string) ChannelResult {
	return ChannelResult{Channel: channel, Status: StatusSkipped, Reason: reason}
}

func notConfigured(channel string) ChannelResult {
	return ChannelResult{Channel: channel, Status: StatusFailed, Error: channel + " delivery is not configured", Reason: "not_configured"}
}

// selectChannels returns requested (validated) or the config-enabled set.
func selectChannels(requested []string, cfg models.WeddingConfig) (map[string]bool, error) {
	out := make(map[string]bool, 3)
	if len(requested) == 0 {
		for _, ch := range cfg.EnabledChannels() {
			out[ch] = true
		}
		return out, nil
	}
	for _, ch := range requested {
		switch ch {
		case models.ChannelEmail, models.ChannelSMS, models.ChannelWhatsApp:
			out[ch] = true
		default:
			return nil, fmt.Errorf("%w: unknown channel %q", ErrValidation, ch)
		}
	}
	return out, nil
}

// filterEvents keeps the rows for eventIDs (event ids, not invitation event ids). Empty
// eventIDs keeps all rows.
func filterEvents(rows []models.InvitationEventView, eventIDs []uuid.UUID) []models.InvitationEventView {
	if len(eventIDs) == 0 {
		return rows
	}
	want := make(map[uuid.UUID]bool, len(eventIDs))
	for _, id := range eventIDs {
		want[id] = true
	}
	var out []models.InvitationEventView
	for _, r := range rows {
		if want[r.EventID] || want[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
