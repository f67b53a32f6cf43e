package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestRecorder receives per-request telemetry.
type RequestRecorder interface {
	RequestStarted()
	RequestFinished(method, path string, status int, elapsed time.Duration)
}

// Metrics records request counts, latency and in-flight requests. Paths are
// the matched route templates so ids do not explode label cardinality.
func Metrics(rec RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rec.RequestStarted()

		c.Next()

		rec.RequestFinished(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
