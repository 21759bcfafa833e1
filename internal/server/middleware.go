package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkrasnov/foxground/internal/auth"
	"github.com/dkrasnov/foxground/internal/metrics"
)

// passkeyHeader carries the operator passkey on privileged requests.
const passkeyHeader = "X-Passkey"

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(
			c.Request.Method, path, fmt.Sprint(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// requireAuth gates privileged routes behind the passkey scheme. All
// failures look identical to the client: no hint which factor, if any,
// was close.
func requireAuth(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, _ := gate.Verify(c.GetHeader(passkeyHeader))
		if !ok {
			c.AbortWithStatusJSON(http.StatusOK, gin.H{
				"success": false,
				"error":   "auth failed",
			})
			return
		}
		c.Next()
	}
}
