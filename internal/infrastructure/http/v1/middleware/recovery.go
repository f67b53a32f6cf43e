// Package middleware provides HTTP middleware components.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/pkg/logger"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR response. The
// stack goes to the log only. A panic raised while validating a document
// rolls back with the transaction, so the document stays DRAFT and the
// request may be retried with the same idempotency key.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			route := c.FullPath()
			fields := []any{
				"error", rec,
				"method", c.Request.Method,
				"route", route,
				"stack", string(debug.Stack()),
			}
			for _, p := range c.Params {
				fields = append(fields, "param_"+p.Key, p.Value)
			}
			logger.Error(c.Request.Context(), "panic recovered", fields...)

			_ = c.Error(
				apperror.NewInternal(fmt.Errorf("panic in %s %s: %v", c.Request.Method, route, rec)).
					WithDetail("request_id", c.GetString("request_id")),
			)
			c.Abort()
		}()
		c.Next()
	}
}
