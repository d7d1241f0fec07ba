package rsvp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/pkg/response"
)

// Handler serves the public RSVP endpoints under /w/:slug.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an RSVP handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Submit handles POST /w/:slug/rsvp.
func (h *Handler) Submit(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, ErrInvalidInput.Error())
		return
	}
	meta := Meta{UserID: middleware.ActorID(c), IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	out, err := h.svc.Submit(c.Request.Context(), middleware.WeddingID(c), in, meta)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, out)
}

// View handles GET /w/:slug/invitations/:token?code=.
func (h *Handler) View(c *gin.Context) {
	out, err := h.svc.View(c.Request.Context(), middleware.WeddingID(c), c.Param("token"), c.Query("code"))
	if errors.Is(err, ErrAccessCodeRequired) {
		c.JSON(http.StatusForbidden, response.Body{Success: false, Data: out, Error: err.Error()})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, out)
}

// fail maps pipeline errors to guest-safe responses. Internal details are only logged.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrRSVPClosed):
		response.Forbidden(c, err.Error())
	default:
		h.logger.Error("rsvp request failed", zap.Error(err), zap.String("path", c.FullPath()))
		response.Internal(c, "something went wrong, please try again later")
	}
}
