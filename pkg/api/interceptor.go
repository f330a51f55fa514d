package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/metrics"
)

// ReadOnly rejects every method that could change state. The operator API
// only observes the watcher.
func ReadOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isReadOnlyMethod(c.Request.Method) {
			c.Header("Allow", "GET, HEAD, OPTIONS")
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{
				"error": "the operator API is read-only",
			})
			return
		}
		c.Next()
	}
}

func isReadOnlyMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// RequestMetrics records request counts and latency per route and logs each
// request at debug level
func RequestMetrics(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("API request")
	}
}
