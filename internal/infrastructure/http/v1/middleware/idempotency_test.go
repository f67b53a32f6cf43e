package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/infrastructure/storage/memory"
)

func newIdempotentEngine(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(Idempotency(memory.NewIdempotencyStore(time.Hour)))
	r.POST("/documents/:id/validate", handler)
	return r
}

func post(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/documents/d-1/validate", strings.NewReader(`{}`))
	req.Header.Set(HeaderIdempotencyKey, key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_StorageUnavailableIsRetried(t *testing.T) {
	calls := 0
	r := newIdempotentEngine(func(c *gin.Context) {
		calls++
		if calls == 1 {
			_ = c.Error(apperror.NewStorageUnavailable(errors.New("connection refused")))
			c.Abort()
			return
		}
		body := []byte(`{"status":"DONE"}`)
		CompleteIdempotency(c, http.StatusOK, "application/json", body)
		c.Data(http.StatusOK, "application/json", body)
	})

	first := post(r, "v-1")
	require.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Contains(t, first.Body.String(), apperror.CodeStorageUnavailable)

	retry := post(r, "v-1")
	require.Equal(t, http.StatusOK, retry.Code)
	assert.Empty(t, retry.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)

	replay := post(r, "v-1")
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_BusinessErrorIsReplayed(t *testing.T) {
	calls := 0
	r := newIdempotentEngine(func(c *gin.Context) {
		calls++
		_ = c.Error(apperror.NewInsufficientStock("p-1", 5, 3))
		c.Abort()
	})

	first := post(r, "v-2")
	require.Equal(t, http.StatusUnprocessableEntity, first.Code)

	second := post(r, "v-2")
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(http.StatusServiceUnavailable, apperror.CodeStorageUnavailable))
	assert.True(t, retryable(http.StatusInternalServerError, apperror.CodeInternal))
	assert.True(t, retryable(http.StatusConflict, apperror.CodeConcurrencyConflict))
	assert.False(t, retryable(http.StatusConflict, apperror.CodeDuplicate))
	assert.False(t, retryable(http.StatusUnprocessableEntity, apperror.CodeInsufficientStock))
}
