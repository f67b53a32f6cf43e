// Package context carries request-scoped values (trace and request ids) through the stack.
package context

import (
	"context"

	"github.com/google/uuid"
)

// Origins of a unit of work. Log lines carry the origin so stock movements
// made through the API can be told apart from background ones.
const (
	OriginHTTP   = "http"
	OriginWorker = "worker"
	OriginSeed   = "seed"
)

// TraceContext identifies one unit of work: an API request or a background job run.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
	Origin    string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// GetOrigin returns the origin of the current unit of work, or empty string.
func GetOrigin(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.Origin
	}
	return ""
}

// NewTraceContext starts a trace for work that did not arrive over HTTP.
func NewTraceContext(origin string) *TraceContext {
	return &TraceContext{
		TraceID:   uuid.New().String(),
		SpanID:    uuid.New().String()[:16],
		RequestID: uuid.New().String(),
		Origin:    origin,
	}
}
