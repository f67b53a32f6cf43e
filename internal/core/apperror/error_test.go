package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("load product: %w", NewStorageUnavailable(cause))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeStorageUnavailable, appErr.Code)
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAppError_StatusByKind(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"unknown entity", NewUnknownEntity("product", "p1"), CodeUnknownEntity, http.StatusNotFound},
		{"invalid state", NewInvalidState("document is DONE"), CodeInvalidState, http.StatusConflict},
		{"invalid quantity", NewInvalidQuantity("must be positive"), CodeInvalidQuantity, http.StatusUnprocessableEntity},
		{"insufficient stock", NewInsufficientStock("p1", 15, 10), CodeInsufficientStock, http.StatusUnprocessableEntity},
		{"empty document", NewEmptyDocument("d1"), CodeEmptyDocument, http.StatusUnprocessableEntity},
		{"referenced", NewReferencedEntity("product", "p1"), CodeReferencedEntity, http.StatusConflict},
		{"concurrency", NewConcurrencyConflict("product", "p1"), CodeConcurrencyConflict, http.StatusConflict},
		{"validation", NewValidation("bad"), CodeValidation, http.StatusBadRequest},
		{"duplicate", NewDuplicate("product", "sku", "WID-1"), CodeDuplicate, http.StatusConflict},
		{"internal", NewInternal(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.True(t, Is(tt.err, tt.code))
		})
	}
}

func TestAppError_Details(t *testing.T) {
	err := NewInsufficientStock("p1", 15, 10).WithDetail("sku", "WID-1")

	assert.Equal(t, "p1", err.Details["product_id"])
	assert.Equal(t, int64(15), err.Details["requested"])
	assert.Equal(t, int64(10), err.Details["available"])
	assert.Equal(t, "WID-1", err.Details["sku"])
}

func TestHelpers_NonAppError(t *testing.T) {
	err := errors.New("plain")

	assert.False(t, IsAppError(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsConcurrencyConflict(err))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
}
