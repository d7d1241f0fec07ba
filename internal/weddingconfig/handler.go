package weddingconfig

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/pkg/response"
)

// Handler handles wedding configuration endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a wedding config handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Get handles GET /weddings/:id/config.
func (h *Handler) Get(c *gin.Context) {
	cfg, err := h.svc.GetConfig(c.Request.Context(), middleware.WeddingID(c))
	if err != nil {
		h.logger.Error("get config failed", zap.Error(err))
		response.Internal(c, "failed to load configuration")
		return
	}
	response.OK(c, cfg)
}

// Update handles PATCH /weddings/:id/config with a partial key/value object.
func (h *Handler) Update(c *gin.Context) {
	var partial map[string]interface{}
	if err := c.ShouldBindJSON(&partial); err != nil {
		response.BadRequest(c, "body must be a JSON object of configuration keys")
		return
	}
	cfg, err := h.svc.UpdateConfig(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c), partial)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("update config failed", zap.Error(err))
		response.Internal(c, "failed to update configuration")
		return
	}
	response.OK(c, cfg)
}

// Reset handles DELETE /weddings/:id/config.
func (h *Handler) Reset(c *gin.Context) {
	cfg, err := h.svc.ResetConfig(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c))
	if err != nil {
		h.logger.Error("reset config failed", zap.Error(err))
		response.Internal(c, "failed to reset configuration")
		return
	}
	response.OK(c, cfg)
}
