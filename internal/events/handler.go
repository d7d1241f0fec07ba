// Package events manages the parts of a wedding guests are invited to.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/response"
)

// Store is the events persistence.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	List(ctx context.Context, weddingID uuid.UUID) ([]models.Event, error)
}

// Handler serves /weddings/:id/events.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// CreateRequest is the body for POST /weddings/:id/events.
type CreateRequest struct {
	Name     string     `json:"name" binding:"required,max=255"`
	Venue    string     `json:"venue" binding:"max=500"`
	StartsAt *time.Time `json:"starts_at"`
}

// Create handles POST.
func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	e := &models.Event{
		WeddingID: middleware.WeddingID(c),
		Name:      strings.TrimSpace(body.Name),
		Venue:     strings.TrimSpace(body.Venue),
		StartsAt:  body.StartsAt,
	}
	if e.Name == "" {
		response.BadRequest(c, "name required")
		return
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err), zap.String("wedding_id", e.WeddingID.String()))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), middleware.WeddingID(c))
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to load events")
		return
	}
	response.OK(c, list)
}
