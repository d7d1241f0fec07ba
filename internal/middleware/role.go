package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/response"
)

// RequireRole allows only the given platform roles. Wedding-level roles are checked by
// RequireWeddingAccess and RequireWeddingEditor instead.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.Role(c.GetString(ContextUserRole))
		if role == "" {
			response.Abort(c, http.StatusUnauthorized, "missing user context")
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		response.Abort(c, http.StatusForbidden, "insufficient permissions")
	}
}
