package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/ctxutil"
	"github.com/clipstream/timeline-core/internal/logger"
)

// RequestLogger logs one line per request at a level chosen by status
// class, carrying trace/request id and the resolved principal if any.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		td := ctxutil.GetTraceData(c.Request.Context())
		p := ctxutil.GetPrincipal(c.Request.Context())

		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if p != nil && p.UserID != "" {
			fields = append(fields, "user_id", p.UserID)
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}
