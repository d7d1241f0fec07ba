package dashboard

import (
	"github.com/gin-gonic/gin"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/pkg/response"
)

// Handler handles GET /weddings/:id/dashboard.
type Handler struct {
	svc *Service
}

// NewHandler creates a dashboard handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get always answers 200; degraded sections are listed in "unavailable".
func (h *Handler) Get(c *gin.Context) {
	response.OK(c, h.svc.Summary(c.Request.Context(), middleware.WeddingID(c)))
}
