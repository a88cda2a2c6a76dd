package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/docledger/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

// GinMiddleware logs each request once it completes. Scrapes of /metrics are
// logged at debug level.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	log := base.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int("bytes_out", normalizeSize(c.Writer.Size())),
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			fields = append(fields, zap.Error(lastErr.Err))
		}

		reqLog := ctxlogger.WithContext(c.Request.Context(), log)
		switch {
		case strings.EqualFold(route, "/metrics"):
			reqLog.Debug("http_request", fields...)
		case status >= http.StatusInternalServerError:
			reqLog.Error("http_request", fields...)
		default:
			reqLog.Info("http_request", fields...)
		}
	}
}

func normalizeSize(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
