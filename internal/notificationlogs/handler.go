package notificationlogs

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/response"
	"github.com/evermore-events/backend/pkg/utils"
)

// Handler handles notification log HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a notification logs handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /weddings/:id/notification-logs?guest_id=&channel=&page=&page_size=.
func (h *Handler) List(c *gin.Context) {
	var guestID *uuid.UUID
	if s := c.Query("guest_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid guest_id")
			return
		}
		guestID = &id
	}
	page, size := utils.Pagination(c)
	logs, total, err := h.repo.ListByWedding(c.Request.Context(), middleware.WeddingID(c), guestID, c.Query("channel"), size, utils.Offset(page, size))
	if err != nil {
		response.Internal(c, "failed to load notification logs")
		return
	}
	response.OK(c, models.Page[models.NotificationLog]{Items: logs, Total: total, Page: page, PageSize: size})
}
