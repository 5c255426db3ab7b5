package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything the readiness check should reach (database, redis).
type Pinger func(ctx context.Context) error

// Online answers the provider's liveness probe.
func Online(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Health reports 200 when every named dependency answers within 2s.
func Health(deps map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}
		for name, ping := range deps {
			if ping == nil {
				continue
			}
			if err := ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks[name] = "down"
				continue
			}
			checks[name] = "ok"
		}
		body := gin.H{"status": "ok", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}
