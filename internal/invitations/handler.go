package invitations

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/response"
	"github.com/evermore-events/backend/pkg/utils"
)

// Handler handles invitation admin endpoints under /weddings/:id.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an invitations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateRequest is the body for POST /weddings/:id/invitations.
type CreateRequest struct {
	GuestIDs []uuid.UUID       `json:"guest_ids" binding:"required,min=1"`
	Events   []models.EventDef `json:"events" binding:"required,min=1"`
}

// DeleteRequest is the body for POST /weddings/:id/invitations/bulk-delete.
type DeleteRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// Create handles POST /weddings/:id/invitations.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "guest_ids and events are required")
		return
	}
	res, err := h.svc.CreateForGuests(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c), req.GuestIDs, req.Events)
	if err != nil {
		h.fail(c, "create invitations", err)
		return
	}
	response.Created(c, res)
}

// List handles GET /weddings/:id/invitations?page=&page_size=&search=&status=.
func (h *Handler) List(c *gin.Context) {
	page, size := utils.Pagination(c)
	p := ListParams{
		Page:     page,
		PageSize: size,
		Search:   c.Query("search"),
		Status:   models.InvitationStatus(c.Query("status")),
	}
	if p.Status != "" && !p.Status.Valid() {
		response.BadRequest(c, "unknown status filter")
		return
	}
	out, err := h.svc.List(c.Request.Context(), middleware.WeddingID(c), p)
	if err != nil {
		h.fail(c, "list invitations", err)
		return
	}
	response.OK(c, out)
}

// Get handles GET /weddings/:id/invitations/:invitationId.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c, "invitationId")
	if !ok {
		return
	}
	d, err := h.svc.Get(c.Request.Context(), middleware.WeddingID(c), id)
	if err != nil {
		h.fail(c, "get invitation", err)
		return
	}
	response.OK(c, d)
}

// Update handles PATCH /weddings/:id/invitations/:invitationId.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c, "invitationId")
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := h.svc.Update(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c), id, in)
	if err != nil {
		h.fail(c, "update invitation", err)
		return
	}
	response.OK(c, d)
}

// Delete handles DELETE /weddings/:id/invitations/:invitationId.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c, "invitationId")
	if !ok {
		return
	}
	h.delete(c, []uuid.UUID{id})
}

// BulkDelete handles POST /weddings/:id/invitations/bulk-delete.
func (h *Handler) BulkDelete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "ids required")
		return
	}
	h.delete(c, req.IDs)
}

func (h *Handler) delete(c *gin.Context, ids []uuid.UUID) {
	n, err := h.svc.Delete(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c), ids)
	if err != nil {
		h.fail(c, "delete invitations", err)
		return
	}
	response.OK(c, gin.H{"deleted": n})
}

// RegenerateToken handles POST /weddings/:id/invitations/:invitationId/token.
func (h *Handler) RegenerateToken(c *gin.Context) {
	id, ok := parseID(c, "invitationId")
	if !ok {
		return
	}
	token, err := h.svc.RegenerateInviteToken(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c), id)
	if err != nil {
		h.fail(c, "rotate invitation token", err)
		return
	}
	response.OK(c, gin.H{"token": token})
}

// UpdateEvent handles PATCH /weddings/:id/invitation-events/:eventRowId.
func (h *Handler) UpdateEvent(c *gin.Context) {
	id, ok := parseID(c, "eventRowId")
	if !ok {
		return
	}
	var edit EventEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ev, err := h.svc.UpdateEvent(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c), id, edit)
	if err != nil {
		h.fail(c, "update invitation event", err)
		return
	}
	response.OK(c, ev)
}

// RegenerateEventToken handles POST /weddings/:id/invitation-events/:eventRowId/token.
func (h *Handler) RegenerateEventToken(c *gin.Context) {
	id, ok := parseID(c, "eventRowId")
	if !ok {
		return
	}
	token, err := h.svc.RegenerateEventToken(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c), id)
	if err != nil {
		h.fail(c, "rotate event token", err)
		return
	}
	response.OK(c, gin.H{"event_token": token})
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "invitation not found")
	case errors.Is(err, ErrGuestHasInvitation):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInviteCodeExhausted):
		h.logger.Error(op+" failed", zap.Error(err), zap.String("wedding_id", middleware.WeddingID(c).String()))
		response.ServiceUnavailable(c, "could not allocate an invite code, please retry")
	default:
		h.logger.Error(op+" failed", zap.Error(err), zap.String("wedding_id", middleware.WeddingID(c).String()))
		response.Internal(c, "failed to "+op)
	}
}
