package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/kfocus/internal/metrics"
	"github.com/rs/zerolog"
)

// LoggingMiddleware logs each request after it is handled.
func LoggingMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		logger.Debug().
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Str("remote_addr", ctx.ClientIP()).
			Int("status", ctx.Writer.Status()).
			Int("size", ctx.Writer.Size()).
			Msg("API request")
	}
}

// MetricsMiddleware counts requests by route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.APIRequestsTotal.WithLabelValues(
			route,
			ctx.Request.Method,
			strconv.Itoa(ctx.Writer.Status()),
		).Inc()
	}
}
