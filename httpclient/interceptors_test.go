package httpclient

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/mindhaven/carekit/session"
	"github.com/mindhaven/carekit/trace"
)

const testExampleURL = "http://example.com"

func newTestRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, testExampleURL, http.NoBody)
	require.NoError(t, err)
	return req
}

func TestNewRequestIDInterceptor(t *testing.T) {
	t.Run("adds request ID from context", func(t *testing.T) {
		req := newTestRequest(t)
		ctx := trace.WithRequestID(context.Background(), "req-123")
		require.NoError(t, NewRequestIDInterceptor("")(ctx, req))
		assert.Equal(t, "req-123", req.Header.Get(HeaderXRequestID))
	})

	t.Run("preserves existing header", func(t *testing.T) {
		req := newTestRequest(t)
		req.Header.Set(HeaderXRequestID, "existing")
		ctx := trace.WithRequestID(context.Background(), "new")
		require.NoError(t, NewRequestIDInterceptor(HeaderXRequestID)(ctx, req))
		assert.Equal(t, "existing", req.Header.Get(HeaderXRequestID))
	})

	t.Run("generates when missing", func(t *testing.T) {
		req := newTestRequest(t)
		require.NoError(t, NewRequestIDInterceptor("")(context.Background(), req))
		assert.Regexp(t, regexp.MustCompile(`^[a-f0-9\-]{36}$`), req.Header.Get(HeaderXRequestID))
	})

	t.Run("custom header", func(t *testing.T) {
		req := newTestRequest(t)
		ctx := trace.WithRequestID(context.Background(), "req-9")
		require.NoError(t, NewRequestIDInterceptor("X-Correlation-ID")(ctx, req))
		assert.Equal(t, "req-9", req.Header.Get("X-Correlation-ID"))
		assert.Empty(t, req.Header.Get(HeaderXRequestID))
	})
}

func TestNewIdempotencyKeyInterceptor(t *testing.T) {
	interceptor := NewIdempotencyKeyInterceptor()

	t.Run("no key pinned", func(t *testing.T) {
		req := newTestRequest(t)
		require.NoError(t, interceptor(context.Background(), req))
		assert.Empty(t, req.Header.Get(HeaderIdempotencyKey))
	})

	t.Run("same key on every attempt", func(t *testing.T) {
		ctx := trace.WithIdempotencyKey(context.Background(), "idem-42")
		for range 3 {
			req := newTestRequest(t)
			require.NoError(t, interceptor(ctx, req))
			assert.Equal(t, "idem-42", req.Header.Get(HeaderIdempotencyKey))
		}
	})

	t.Run("explicit header wins", func(t *testing.T) {
		req := newTestRequest(t)
		req.Header.Set(HeaderIdempotencyKey, "explicit")
		ctx := trace.WithIdempotencyKey(context.Background(), "pinned")
		require.NoError(t, interceptor(ctx, req))
		assert.Equal(t, "explicit", req.Header.Get(HeaderIdempotencyKey))
	})
}

func TestNewBearerInterceptor(t *testing.T) {
	store := session.NewMemoryStore()
	interceptor := NewBearerInterceptor(store)

	req := newTestRequest(t)
	require.NoError(t, interceptor(context.Background(), req))
	assert.Empty(t, req.Header.Get(HeaderAuthorization))

	require.NoError(t, store.Save(context.Background(), &session.Session{Token: "t1"}))
	req = newTestRequest(t)
	require.NoError(t, interceptor(context.Background(), req))
	assert.Equal(t, "Bearer t1", req.Header.Get(HeaderAuthorization))
}

func TestNewRateLimitInterceptor(t *testing.T) {
	interceptor := NewRateLimitInterceptor(rate.NewLimiter(rate.Inf, 1))
	require.NoError(t, interceptor(context.Background(), newTestRequest(t)))

	blocked := NewRateLimitInterceptor(rate.NewLimiter(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, blocked(ctx, newTestRequest(t)))
}
