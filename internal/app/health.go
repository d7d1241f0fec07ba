package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evermore-events/backend/pkg/response"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// HealthHandler answers 200 when every check passes and 503 otherwise, naming each check.
func HealthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if check(ctx) {
				status[name] = "ok"
				continue
			}
			status[name] = "down"
			healthy = false
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Data: gin.H{"checks": status}, Error: "degraded"})
			return
		}
		response.OK(c, gin.H{"status": "ok", "checks": status})
	}
}

// HealthChecks returns the Postgres and Redis checks for i.
func (i *Infra) HealthChecks() map[string]HealthCheck {
	return map[string]HealthCheck{
		"postgres": func(ctx context.Context) bool { return i.Pool.Ping(ctx) == nil },
		"redis":    i.Redis.Healthy,
	}
}
