// Package trace carries request correlation values through a context: the
// request ID sent on every call and the idempotency key that must stay the
// same across retries of one mutating call.
package trace

import (
	"context"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	requestIDKey      contextKey = "request_id"
	idempotencyKeyKey contextKey = "idempotency_key"

	// HeaderXRequestID is the default header carrying the request ID
	HeaderXRequestID = "X-Request-ID"
	// HeaderIdempotencyKey is the header the booking API dedupes mutations on
	HeaderIdempotencyKey = "Idempotency-Key"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns a request ID from context if present
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the request ID from context. Without one it falls
// back to the active span's trace ID and then to a fresh UUID.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	if sc := oteltrace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.New().String()
}

// WithIdempotencyKey pins key for every attempt made under ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyKey, key)
}

// IdempotencyKeyFromContext returns the pinned idempotency key if present
func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	if key, ok := ctx.Value(idempotencyKeyKey).(string); ok && key != "" {
		return key, true
	}
	return "", false
}

// NewIdempotencyKey returns a random key suitable for WithIdempotencyKey.
func NewIdempotencyKey() string {
	return uuid.NewString()
}
