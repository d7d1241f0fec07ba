package audit

import (
	"github.com/gin-gonic/gin"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/response"
	"github.com/evermore-events/backend/pkg/utils"
)

// Handler handles audit log HTTP endpoints.
type Handler struct {
	writer *Writer
}

// NewHandler creates an audit handler.
func NewHandler(writer *Writer) *Handler {
	return &Handler{writer: writer}
}

// List handles GET /weddings/:id/audit-logs?action=&page=&page_size=.
func (h *Handler) List(c *gin.Context) {
	page, size := utils.Pagination(c)
	logs, total, err := h.writer.List(c.Request.Context(), middleware.WeddingID(c), c.Query("action"), size, utils.Offset(page, size))
	if err != nil {
		response.Internal(c, "failed to load audit logs")
		return
	}
	response.OK(c, models.Page[models.AuditLog]{Items: logs, Total: total, Page: page, PageSize: size})
}
