// Package weddings manages tenants and their memberships.
package weddings

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/response"
)

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Store is the wedding persistence used by the handler.
type Store interface {
	Create(ctx context.Context, w *models.Wedding, ownerID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error)
	Update(ctx context.Context, w *models.Wedding) error
	AddMember(ctx context.Context, weddingID, userID uuid.UUID, role string) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Wedding, error)
	ListMembers(ctx context.Context, weddingID uuid.UUID) ([]Member, error)
}

// UserLookup finds users by email when adding members.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Handler handles wedding HTTP endpoints.
type Handler struct {
	store  Store
	users  UserLookup
	logger *zap.Logger
}

// NewHandler creates a weddings handler.
func NewHandler(store Store, users UserLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, users: users, logger: logger}
}

// WeddingRequest is the body for POST /weddings and PATCH /weddings/:id.
type WeddingRequest struct {
	Name      string `json:"name" binding:"required"`
	Slug      string `json:"slug"`
	EventDate string `json:"event_date"` // YYYY-MM-DD
}

// AddMemberRequest is the body for POST /weddings/:id/members.
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=owner planner viewer"`
}

func parseRequest(body *WeddingRequest) (*models.Wedding, string) {
	w := &models.Wedding{Name: strings.TrimSpace(body.Name), Slug: strings.ToLower(strings.TrimSpace(body.Slug))}
	if len(w.Name) < 1 || len(w.Name) > 255 {
		return nil, "name must be 1–255 characters"
	}
	if body.EventDate != "" {
		d, err := time.Parse("2006-01-02", body.EventDate)
		if err != nil {
			return nil, "event_date must be YYYY-MM-DD"
		}
		w.EventDate = &d
	}
	return w, ""
}

// Create handles POST /weddings. The caller becomes the owner.
func (h *Handler) Create(c *gin.Context) {
	actor := middleware.ActorID(c)
	if actor == nil {
		response.Unauthorized(c, "missing user context")
		return
	}
	var body WeddingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	w, msg := parseRequest(&body)
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if !slugRegex.MatchString(w.Slug) {
		response.BadRequest(c, "slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	if err := h.store.Create(c.Request.Context(), w, *actor); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, err.Error())
			return
		}
		h.logger.Error("create wedding failed", zap.Error(err))
		response.Internal(c, "failed to create wedding")
		return
	}
	response.Created(c, w)
}

// ListMine handles GET /weddings.
func (h *Handler) ListMine(c *gin.Context) {
	actor := middleware.ActorID(c)
	if actor == nil {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.store.ListForUser(c.Request.Context(), *actor)
	if err != nil {
		h.logger.Error("list weddings failed", zap.Error(err))
		response.Internal(c, "failed to load weddings")
		return
	}
	response.OK(c, list)
}

// Get handles GET /weddings/:id.
func (h *Handler) Get(c *gin.Context) {
	w, err := h.store.GetByID(c.Request.Context(), middleware.WeddingID(c))
	if err != nil {
		h.notFoundOr500(c, "load wedding", err)
		return
	}
	response.OK(c, w)
}

// Update handles PATCH /weddings/:id. The slug is immutable; links already sent embed it.
func (h *Handler) Update(c *gin.Context) {
	var body WeddingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	w, msg := parseRequest(&body)
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	w.ID = middleware.WeddingID(c)
	if err := h.store.Update(c.Request.Context(), w); err != nil {
		h.notFoundOr500(c, "update wedding", err)
		return
	}
	response.OK(c, w)
}

// ListMembers handles GET /weddings/:id/members.
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.store.ListMembers(c.Request.Context(), middleware.WeddingID(c))
	if err != nil {
		h.logger.Error("list members failed", zap.Error(err))
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// AddMember handles POST /weddings/:id/members. Owners only.
func (h *Handler) AddMember(c *gin.Context) {
	if c.GetString(middleware.ContextWeddingRole) != models.WeddingRoleOwner {
		response.Forbidden(c, "only owners can manage members")
		return
	}
	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "valid email and role (owner, planner, viewer) required")
		return
	}
	u, err := h.users.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(body.Email)))
	if err != nil || u == nil {
		response.NotFound(c, "no user with that email")
		return
	}
	weddingID := middleware.WeddingID(c)
	if err := h.store.AddMember(c.Request.Context(), weddingID, u.ID, body.Role); err != nil {
		h.logger.Error("add member failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		response.Internal(c, "failed to add member")
		return
	}
	response.OK(c, Member{UserID: u.ID, Email: u.Email, FullName: u.FullName, Role: body.Role})
}

func (h *Handler) notFoundOr500(c *gin.Context, op string, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "wedding not found")
		return
	}
	h.logger.Error(op+" failed", zap.Error(err))
	response.Internal(c, "failed to "+op)
}
