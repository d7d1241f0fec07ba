package notifications

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/queue"
	"github.com/evermore-events/backend/pkg/response"
)

// BulkEnqueuer hands bulk sends to the worker.
type BulkEnqueuer interface {
	EnqueueBulkNotification(ctx context.Context, payload queue.BulkNotificationPayload) (string, error)
}

// Handler handles notification send endpoints.
type Handler struct {
	svc    *Service
	jobs   BulkEnqueuer
	logger *zap.Logger
}

// NewHandler creates a notifications handler. With a nil jobs, bulk sends run inline.
func NewHandler(svc *Service, jobs BulkEnqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, jobs: jobs, logger: logger}
}

// SendRequest is the body for POST /weddings/:id/invitations/:invitationId/send.
// IgnoreRateLimit only takes effect together with ConfirmIgnoreRateLimit.
type SendRequest struct {
	EventIDs               []uuid.UUID `json:"event_ids"`
	Channels               []string    `json:"channels"`
	IgnoreRateLimit        bool        `json:"ignore_rate_limit"`
	ConfirmIgnoreRateLimit bool        `json:"confirm_ignore_rate_limit"`
}

// BulkSendRequest is the body for POST /weddings/:id/notifications/bulk.
type BulkSendRequest struct {
	InvitationIDs          []uuid.UUID `json:"invitation_ids"`
	Channels               []string    `json:"channels"`
	IgnoreRateLimit        bool        `json:"ignore_rate_limit"`
	ConfirmIgnoreRateLimit bool        `json:"confirm_ignore_rate_limit"`
}

// Send handles POST /weddings/:id/invitations/:invitationId/send.
func (h *Handler) Send(c *gin.Context) {
	id, err := uuid.Parse(c.Param("invitationId"))
	if err != nil {
		response.BadRequest(c, "invalid invitation id")
		return
	}
	var req SendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	if req.IgnoreRateLimit && !req.ConfirmIgnoreRateLimit {
		response.BadRequest(c, "ignore_rate_limit requires confirm_ignore_rate_limit")
		return
	}
	res, err := h.svc.SendInvitationNotification(c.Request.Context(), Request{
		WeddingID:       middleware.WeddingID(c),
		InvitationID:    id,
		EventIDs:        req.EventIDs,
		Channels:        req.Channels,
		IgnoreRateLimit: req.IgnoreRateLimit,
		Actor:           middleware.ActorID(c),
	})
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "invitation not found")
		return
	case errors.Is(err, ErrNoEvents), errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		h.logger.Error("send invitation failed", zap.Error(err), zap.String("invitation_id", id.String()))
		response.Internal(c, "failed to send invitation")
		return
	}
	if res.RateLimited() {
		c.JSON(http.StatusTooManyRequests, response.Body{Success: false, Data: res, Error: "daily notification limit reached for this invitation, try again tomorrow"})
		return
	}
	response.OK(c, res)
}

// SendBulk handles POST /weddings/:id/notifications/bulk. The run is queued for the worker
// and 202 returned with the job id; without a queue it runs inline.
func (h *Handler) SendBulk(c *gin.Context) {
	var req BulkSendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	if req.IgnoreRateLimit && !req.ConfirmIgnoreRateLimit {
		response.BadRequest(c, "ignore_rate_limit requires confirm_ignore_rate_limit")
		return
	}
	if _, err := selectChannels(req.Channels, models.WeddingConfig{}); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	weddingID := middleware.WeddingID(c)
	if h.jobs != nil {
		jobID, err := h.jobs.EnqueueBulkNotification(c.Request.Context(), queue.BulkNotificationPayload{
			WeddingID:       weddingID,
			InvitationIDs:   req.InvitationIDs,
			Channels:        req.Channels,
			IgnoreRateLimit: req.IgnoreRateLimit,
			Actor:           middleware.ActorID(c),
		})
		if err != nil {
			h.logger.Error("enqueue bulk send failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
			response.Internal(c, "failed to queue bulk send")
			return
		}
		response.Accepted(c, gin.H{"job_id": jobID})
		return
	}
	out, err := h.svc.SendBulk(c.Request.Context(), BulkRequest{
		WeddingID:       weddingID,
		InvitationIDs:   req.InvitationIDs,
		Channels:        req.Channels,
		IgnoreRateLimit: req.IgnoreRateLimit,
		Actor:           middleware.ActorID(c),
	})
	if err != nil {
		h.logger.Error("bulk send failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		response.Internal(c, "failed to send invitations")
		return
	}
	response.OK(c, out)
}
