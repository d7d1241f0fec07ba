package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/response"
)

const (
	// ContextWeddingID is the key for the resolved tenant id.
	ContextWeddingID = "wedding_id"
	// ContextWeddingRole is the caller's membership role in the wedding.
	ContextWeddingRole = "wedding_role"
)

// WeddingAccess resolves membership and slugs for tenant scoping.
type WeddingAccess interface {
	GetUserRole(ctx context.Context, weddingID, userID uuid.UUID) (string, error)
	GetBySlug(ctx context.Context, slug string) (*models.Wedding, error)
}

// RequireWeddingAccess parses :id as the wedding id and checks the JWT user is a member.
// Platform admins pass without membership. Must run after JWT.
func RequireWeddingAccess(access WeddingAccess, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		weddingID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.Abort(c, http.StatusBadRequest, "invalid wedding id")
			return
		}
		if models.Role(c.GetString(ContextUserRole)).IsPlatformAdmin() {
			c.Set(ContextWeddingID, weddingID)
			c.Set(ContextWeddingRole, models.WeddingRoleOwner)
			c.Next()
			return
		}
		actor := ActorID(c)
		if actor == nil {
			response.Abort(c, http.StatusUnauthorized, "missing user context")
			return
		}
		role, err := access.GetUserRole(c.Request.Context(), weddingID, *actor)
		if err != nil || role == "" {
			if err != nil {
				logger.Debug("wedding access denied", zap.Error(err), zap.String("wedding_id", weddingID.String()))
			}
			response.Abort(c, http.StatusForbidden, "not authorized for this wedding")
			return
		}
		c.Set(ContextWeddingID, weddingID)
		c.Set(ContextWeddingRole, role)
		c.Next()
	}
}

// RequireWeddingEditor rejects viewers. Must run after RequireWeddingAccess.
func RequireWeddingEditor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role := c.GetString(ContextWeddingRole); role == models.WeddingRoleViewer {
			response.Abort(c, http.StatusForbidden, "read-only access to this wedding")
			return
		}
		c.Next()
	}
}

// ResolveWeddingSlug resolves :slug to a wedding on public routes. Unknown slugs are 404.
func ResolveWeddingSlug(access WeddingAccess) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := access.GetBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil || w == nil {
			response.Abort(c, http.StatusNotFound, "wedding not found")
			return
		}
		c.Set(ContextWeddingID, w.ID)
		c.Next()
	}
}

// WeddingID returns the tenant resolved by RequireWeddingAccess or ResolveWeddingSlug.
func WeddingID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(ContextWeddingID)
	id, _ := v.(uuid.UUID)
	return id
}
