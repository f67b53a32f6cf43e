package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/idempotency"
	"stockledger/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// Idempotency middleware protects against duplicate requests.
// Applies to POST and PATCH requests carrying X-Idempotency-Key.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("failed to read request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// The path carries the entity id, so the same body on another document hashes differently.
		hash := sha256.New()
		hash.Write([]byte(c.Request.URL.Path))
		hash.Write([]byte{0})
		hash.Write(body)
		requestHash := hex.EncodeToString(hash.Sum(nil))

		operation := c.Request.Method + " " + c.FullPath()

		replay, err := store.AcquireKey(c.Request.Context(), key, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			if replay.StatusCode == http.StatusNoContent {
				c.Status(http.StatusNoContent)
			} else {
				c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			}
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency stores a successful response for replay. It is a no-op
// when the request carries no idempotency key.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	finishIdempotency(c, func(ctx context.Context, s idempotency.Store, key string) error {
		return s.CompleteKey(ctx, key, statusCode, contentType, body)
	})
}

// FailIdempotency stores an error response for replay.
func FailIdempotency(c *gin.Context, statusCode int, body []byte) {
	finishIdempotency(c, func(ctx context.Context, s idempotency.Store, key string) error {
		return s.FailKey(ctx, key, statusCode, "application/json", body)
	})
}

// ReleaseIdempotency drops the pending key after a transient failure so a
// retry with the same key runs the request again.
func ReleaseIdempotency(c *gin.Context) {
	finishIdempotency(c, func(ctx context.Context, s idempotency.Store, key string) error {
		return s.ReleaseKey(ctx, key)
	})
}

// retryable reports whether an error response must not be replayed.
func retryable(status int, code string) bool {
	return status >= http.StatusInternalServerError || code == apperror.CodeConcurrencyConflict
}

func finishIdempotency(c *gin.Context, fn func(context.Context, idempotency.Store, string) error) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return
	}
	store, ok := c.Value(ctxIdempotencyStore).(idempotency.Store)
	if !ok || store == nil {
		return
	}
	// Record the outcome even when the client has gone away.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := fn(ctx, store, key); err != nil {
		logger.Warn(ctx, "failed to store idempotent response", "key", key, "error", err)
	}
}
