package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindhaven/carekit/httpclient"
)

var (
	errServer  = httpclient.NewError(httpclient.ServerError, 503, nil, nil)
	errNetwork = httpclient.NewError(httpclient.NetworkUnreachable, 0, nil, errors.New("connection refused"))
	errAuth    = httpclient.NewError(httpclient.AuthExpired, 401, nil, nil)
	errClient  = httpclient.NewError(httpclient.ClientRequestError, 400, []byte(`{"message":"bad"}`), nil)
)

// recordingSleeper records requested waits without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return context.Cause(ctx)
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestExecutor(policy Policy, opts ...Option) (*Executor, *recordingSleeper) {
	s := &recordingSleeper{}
	return New(policy, append([]Option{WithSleeper(s.sleep)}, opts...)...), s
}

func failing(err error, calls *atomic.Int32) func(context.Context) error {
	return func(context.Context) error {
		calls.Add(1)
		return err
	}
}

func TestRunAttemptLimit(t *testing.T) {
	for _, err := range []error{errServer, errNetwork} {
		t.Run(httpclient.Classify(err).Kind().String(), func(t *testing.T) {
			e, sleeper := newTestExecutor(DefaultPolicy())
			var calls atomic.Int32

			got := e.Run(context.Background(), failing(err, &calls))

			assert.EqualValues(t, 4, calls.Load())
			assert.Same(t, err, got, "the final error is returned unchanged")
			assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.recorded())
		})
	}
}

func TestRunNonRetryableFailsOnce(t *testing.T) {
	for _, err := range []error{errAuth, errClient, errors.New("plain"), context.Canceled} {
		t.Run(err.Error(), func(t *testing.T) {
			e, sleeper := newTestExecutor(DefaultPolicy())
			var calls atomic.Int32

			got := e.Run(context.Background(), failing(err, &calls))

			assert.EqualValues(t, 1, calls.Load())
			assert.Same(t, err, got)
			assert.Empty(t, sleeper.recorded())
		})
	}
}

func TestRunZeroRetriesIsPassthrough(t *testing.T) {
	policy := Policy{MaxRetries: 0, InitialDelay: time.Second, BackoffMultiplier: 2}
	e, sleeper := newTestExecutor(policy)

	var calls atomic.Int32
	err := e.Run(context.Background(), failing(errServer, &calls))
	assert.EqualValues(t, 1, calls.Load())
	assert.Same(t, errServer, err)
	assert.Empty(t, sleeper.recorded())

	calls.Store(0)
	require.NoError(t, e.Run(context.Background(), func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	assert.EqualValues(t, 1, calls.Load())
}

func TestRunSucceedsAfterTransientFailures(t *testing.T) {
	e, sleeper := newTestExecutor(DefaultPolicy())
	var calls atomic.Int32

	err := e.Run(context.Background(), func(context.Context) error {
		if calls.Add(1) < 3 {
			return errNetwork
		}
		return nil
	})

	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.recorded())
}

func TestRunRealDelaysGrowExponentially(t *testing.T) {
	policy := Policy{MaxRetries: 3, InitialDelay: 20 * time.Millisecond, BackoffMultiplier: 2}
	e := New(policy)

	var stamps []time.Time
	err := e.Run(context.Background(), func(context.Context) error {
		stamps = append(stamps, time.Now())
		return errServer
	})
	require.Same(t, errServer, err)
	require.Len(t, stamps, 4)

	const tolerance = 50 * time.Millisecond
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, policy.Delay(i-1), "gap before attempt %d", i+1)
		assert.Less(t, gap, policy.Delay(i-1)+tolerance, "gap before attempt %d", i+1)
	}
}

func TestRunCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	stop := errors.New("user navigated away")

	e := New(Policy{MaxRetries: 3, InitialDelay: time.Hour, BackoffMultiplier: 2},
		WithStatus(func(s Status) {
			if s.State == Waiting {
				cancel(stop)
			}
		}))

	var calls atomic.Int32
	start := time.Now()
	err := e.Run(ctx, failing(errServer, &calls))

	assert.Less(t, time.Since(start), time.Minute)
	assert.EqualValues(t, 1, calls.Load())
	assert.ErrorIs(t, err, errServer)
	assert.ErrorIs(t, err, stop)
	assert.True(t, httpclient.IsKind(err, httpclient.ServerError))
}

func TestStatusTransitions(t *testing.T) {
	var states []State
	var last Status
	e, _ := newTestExecutor(Policy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffMultiplier: 2},
		WithStatus(func(s Status) {
			states = append(states, s.State)
			last = s
		}))

	var calls atomic.Int32
	_ = e.Run(context.Background(), failing(errServer, &calls))

	assert.Equal(t, []State{
		Attempting, Waiting,
		Attempting, Waiting,
		Attempting, Failed,
	}, states)
	assert.Equal(t, 2, last.Attempt)
	assert.Same(t, errServer, last.Err)

	states = nil
	require.NoError(t, e.Run(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, []State{Attempting, Succeeded}, states)
}

func TestStatusFromContext(t *testing.T) {
	e, _ := newTestExecutor(Policy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffMultiplier: 2})

	var seen []int
	_ = e.Run(context.Background(), func(ctx context.Context) error {
		st, ok := StatusFromContext(ctx)
		require.True(t, ok)
		seen = append(seen, st.Attempt)
		assert.Equal(t, Attempting, st.State)
		return errNetwork
	})
	assert.Equal(t, []int{0, 1, 2}, seen)

	_, ok := StatusFromContext(context.Background())
	assert.False(t, ok)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "attempting attempt 1/4", Status{State: Attempting, MaxRetries: 3}.String())
	assert.Equal(t, "waiting attempt 2/4, next in 2s", Status{State: Waiting, Attempt: 1, MaxRetries: 3, Delay: 2 * time.Second}.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestExecuteReturnsValue(t *testing.T) {
	e, _ := newTestExecutor(DefaultPolicy())
	var calls atomic.Int32

	got, err := Execute(context.Background(), e, func(context.Context) ([]string, error) {
		if calls.Add(1) == 1 {
			return []string{"stale"}, errServer
		}
		return []string{"c1", "c2"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, got)

	got, err = Execute(context.Background(), e, func(context.Context) ([]string, error) {
		return []string{"partial"}, errClient
	})
	assert.Nil(t, got)
	assert.Same(t, errClient, err)
}

func TestWithPolicyLeavesOriginalUntouched(t *testing.T) {
	base, sleeper := newTestExecutor(DefaultPolicy())
	quick := base.WithPolicy(Policy{MaxRetries: 1, InitialDelay: time.Millisecond, BackoffMultiplier: 2})

	assert.Equal(t, DefaultPolicy(), base.Policy())
	assert.Equal(t, 1, quick.Policy().MaxRetries)

	var calls atomic.Int32
	_ = quick.Run(context.Background(), failing(errServer, &calls))
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, []time.Duration{time.Millisecond}, sleeper.recorded())

	invalid := base.WithPolicy(Policy{MaxRetries: -1})
	assert.Equal(t, DefaultPolicy(), invalid.Policy())
}

func TestNewWithInvalidPolicyUsesDefault(t *testing.T) {
	e := New(Policy{BackoffMultiplier: 0})
	assert.Equal(t, DefaultPolicy(), e.Policy())
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	e, _ := newTestExecutor(DefaultPolicy())

	var wg sync.WaitGroup
	counts := make([]atomic.Int32, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = e.Run(context.Background(), failing(errServer, &counts[i]))
		}(i)
	}
	wg.Wait()

	for i := range counts {
		assert.EqualValues(t, 4, counts[i].Load(), "call %d", i)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "server", err: errServer, want: true},
		{name: "wrapped_server", err: fmt.Errorf("list centres: %w", errServer), want: true},
		{name: "network", err: errNetwork, want: true},
		{name: "auth", err: errAuth, want: false},
		{name: "client", err: errClient, want: false},
		{name: "raw_net_error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "cancelled", err: context.Canceled, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithClassifier(t *testing.T) {
	e, _ := newTestExecutor(DefaultPolicy(), WithClassifier(func(error) bool { return false }))
	var calls atomic.Int32
	_ = e.Run(context.Background(), failing(errServer, &calls))
	assert.EqualValues(t, 1, calls.Load())
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))
	require.NoError(t, SleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

func TestServerErrorThenSuccessOverHTTP(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	c, err := httpclient.NewBuilder(nil).WithBaseURL(server.URL).Build()
	require.NoError(t, err)
	e, sleeper := newTestExecutor(DefaultPolicy())

	resp, err := Execute(context.Background(), e, func(ctx context.Context) (*httpclient.Response, error) {
		return c.Get(ctx, &httpclient.Request{Path: "/clinicians"})
	})
	require.NoError(t, err)
	assert.Equal(t, `{"data":[]}`, string(resp.Body))
	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, []time.Duration{time.Second}, sleeper.recorded())
}
