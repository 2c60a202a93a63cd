package httpclient

import (
	"context"
	"fmt"
	nethttp "net/http"

	"golang.org/x/time/rate"

	"github.com/mindhaven/carekit/trace"
)

// NewRequestIDInterceptor sets the request ID header from the context,
// generating one when absent. An existing header is preserved.
func NewRequestIDInterceptor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, trace.EnsureRequestID(ctx))
		}
		return nil
	}
}

// NewIdempotencyKeyInterceptor copies the key pinned with
// trace.WithIdempotencyKey onto the request, so every retry of a mutation
// carries the same key.
func NewIdempotencyKeyInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(HeaderIdempotencyKey) != "" {
			return nil
		}
		if key, ok := trace.IdempotencyKeyFromContext(ctx); ok {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		return nil
	}
}

// NewRateLimitInterceptor blocks until limiter admits the request or ctx ends.
func NewRateLimitInterceptor(limiter *rate.Limiter) RequestInterceptor {
	return func(ctx context.Context, _ *nethttp.Request) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		return nil
	}
}
