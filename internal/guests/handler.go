package guests

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/pkg/response"
	"github.com/evermore-events/backend/pkg/utils"
)

// Handler serves /weddings/:id/guests.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a guests handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /weddings/:id/guests.
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	g, err := h.svc.Create(c.Request.Context(), middleware.WeddingID(c), in)
	if err != nil {
		h.fail(c, "create guest", err)
		return
	}
	response.Created(c, g)
}

// List handles GET /weddings/:id/guests?page=&page_size=&search=.
func (h *Handler) List(c *gin.Context) {
	page, size := utils.Pagination(c)
	out, err := h.svc.List(c.Request.Context(), middleware.WeddingID(c), ListParams{Page: page, PageSize: size, Search: c.Query("search")})
	if err != nil {
		h.fail(c, "list guests", err)
		return
	}
	response.OK(c, out)
}

// Get handles GET /weddings/:id/guests/:guestId.
func (h *Handler) Get(c *gin.Context) {
	id, ok := guestID(c)
	if !ok {
		return
	}
	g, err := h.svc.Get(c.Request.Context(), middleware.WeddingID(c), id)
	if err != nil {
		h.fail(c, "load guest", err)
		return
	}
	response.OK(c, g)
}

// Update handles PUT /weddings/:id/guests/:guestId.
func (h *Handler) Update(c *gin.Context) {
	id, ok := guestID(c)
	if !ok {
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	g, err := h.svc.Update(c.Request.Context(), middleware.WeddingID(c), id, in)
	if err != nil {
		h.fail(c, "update guest", err)
		return
	}
	response.OK(c, g)
}

// Delete handles DELETE /weddings/:id/guests/:guestId.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := guestID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c), id); err != nil {
		h.fail(c, "delete guest", err)
		return
	}
	response.NoContent(c)
}

// Import handles POST /weddings/:id/guests/import.
func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Import(c.Request.Context(), middleware.WeddingID(c), middleware.ActorID(c), req)
	if err != nil {
		h.fail(c, "import guests", err)
		return
	}
	response.OK(c, res)
}

func guestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("guestId"))
	if err != nil {
		response.BadRequest(c, "invalid guest id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "guest not found")
	default:
		h.logger.Error(op+" failed", zap.Error(err), zap.String("wedding_id", middleware.WeddingID(c).String()))
		response.Internal(c, "failed to "+op)
	}
}
