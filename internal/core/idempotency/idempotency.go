// Package idempotency defines the contract behind the X-Idempotency-Key header.
package idempotency

import (
	"context"
	"net/http"
	"time"
)

// DefaultTTL is how long a completed key replays its response.
const DefaultTTL = 24 * time.Hour

// StaleAfter is how long a pending key blocks retries before it is reclaimed.
const StaleAfter = time.Minute

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Replay is a cached HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// NewReplay normalizes a stored response.
func NewReplay(statusCode int, contentType string, body []byte) *Replay {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	if contentType == "" {
		contentType = "application/json"
	}
	return &Replay{StatusCode: statusCode, ContentType: contentType, Body: body}
}

// Store manages idempotency keys.
type Store interface {
	// AcquireKey claims key for operation with the given request hash.
	// It returns (nil, nil) when the caller owns the key, a Replay when the
	// operation already finished, and an IDEMPOTENCY_CONFLICT error when the
	// key is in flight or was used for a different request.
	AcquireKey(ctx context.Context, key, operation, requestHash string) (*Replay, error)

	// CompleteKey stores a successful response.
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error

	// FailKey stores an error response.
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error

	// ReleaseKey forgets a pending key so the request can be retried with it.
	// Completed keys are left untouched.
	ReleaseKey(ctx context.Context, key string) error

	// CleanupExpired removes expired keys and returns how many were removed.
	CleanupExpired(ctx context.Context) (int64, error)
}
