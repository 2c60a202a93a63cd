package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mindhaven/carekit/httpclient"
	"github.com/mindhaven/carekit/logger"
)

// Sleeper waits for d or until ctx is done, returning the context's cause in
// the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor runs operations under a Policy. It holds no per-call state, so a
// single Executor can serve any number of concurrent calls.
type Executor struct {
	policy    Policy
	log       logger.Logger
	sleep     Sleeper
	onStatus  StatusFunc
	retryable func(error) bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger logs each failed attempt at warn level.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithSleeper replaces the timer-based wait.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithStatus registers fn to observe state transitions.
func WithStatus(fn StatusFunc) Option {
	return func(e *Executor) { e.onStatus = fn }
}

// WithClassifier replaces IsRetryable.
func WithClassifier(fn func(error) bool) Option {
	return func(e *Executor) {
		if fn != nil {
			e.retryable = fn
		}
	}
}

// New creates an Executor. An invalid policy falls back to DefaultPolicy.
func New(policy Policy, opts ...Option) *Executor {
	if policy.Validate() != nil {
		policy = DefaultPolicy()
	}
	e := &Executor{
		policy:    policy,
		log:       logger.Nop(),
		sleep:     SleepContext,
		retryable: IsRetryable,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the policy calls are run with.
func (e *Executor) Policy() Policy {
	return e.policy
}

// WithPolicy returns a copy of e that runs with p. e is left unchanged.
// An invalid p leaves the copy on e's policy.
func (e *Executor) WithPolicy(p Policy) *Executor {
	c := *e
	if p.Validate() == nil {
		c.policy = p
	}
	return &c
}

// Run invokes op until it succeeds, fails with a non-retryable error, or
// the policy's retries are used up. The last error is returned unchanged.
func (e *Executor) Run(ctx context.Context, op func(ctx context.Context) error) error {
	b := e.policy.backOff()
	maxRetries := e.policy.MaxRetries

	for attempt := 0; ; attempt++ {
		st := Status{State: Attempting, Attempt: attempt, MaxRetries: maxRetries}
		e.emit(st)

		err := op(context.WithValue(ctx, statusCtxKey{}, st))
		if err == nil {
			e.emit(Status{State: Succeeded, Attempt: attempt, MaxRetries: maxRetries})
			return nil
		}

		if !e.retryable(err) {
			e.fail(attempt, err, "Attempt failed with a non-retryable error")
			return err
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			e.fail(attempt, err, "Retries exhausted")
			return err
		}

		e.log.Warn().
			Int("attempt", attempt+1).
			Int("max_attempts", maxRetries+1).
			Str("kind", httpclient.Classify(err).Kind().String()).
			Dur("next_delay", delay).
			Err(err).
			Msg("Attempt failed, retrying")
		e.emit(Status{State: Waiting, Attempt: attempt, MaxRetries: maxRetries, Delay: delay, Err: err})

		if serr := e.sleep(ctx, delay); serr != nil {
			joined := errors.Join(err, serr)
			e.emit(Status{State: Failed, Attempt: attempt, MaxRetries: maxRetries, Err: joined})
			return joined
		}
	}
}

// Execute runs op under e and returns its value. On failure the zero value
// of T is returned with the error.
func Execute[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Run(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (e *Executor) fail(attempt int, err error, msg string) {
	e.log.Debug().
		Int("attempt", attempt+1).
		Str("kind", httpclient.Classify(err).Kind().String()).
		Err(err).
		Msg(msg)
	e.emit(Status{State: Failed, Attempt: attempt, MaxRetries: e.policy.MaxRetries, Err: err})
}

func (e *Executor) emit(s Status) {
	if e.onStatus != nil {
		e.onStatus(s)
	}
}

// IsRetryable asks err whether it may be retried. Errors that do not know
// are classified with httpclient.Classify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return httpclient.Classify(err).Retryable()
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return context.Cause(ctx)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
