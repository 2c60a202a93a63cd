package retry

import (
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxRetries        = 3
	DefaultInitialDelay      = 1 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Policy describes how many times and how far apart an operation is retried.
// It is a value type and safe to share.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt. 0 disables retrying.
	MaxRetries int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// BackoffMultiplier scales each subsequent wait.
	BackoffMultiplier float64
	// MaxDelay caps a single wait. 0 leaves waits uncapped.
	MaxDelay time.Duration
}

// DefaultPolicy returns 3 retries starting at 1s and doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        DefaultMaxRetries,
		InitialDelay:      DefaultInitialDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// Validate rejects policies that cannot produce a schedule.
func (p Policy) Validate() error {
	var errs []error
	if p.MaxRetries < 0 {
		errs = append(errs, errors.New("retry: max retries cannot be negative"))
	}
	if p.InitialDelay < 0 {
		errs = append(errs, errors.New("retry: initial delay cannot be negative"))
	}
	if p.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("retry: backoff multiplier must be at least 1"))
	}
	if p.MaxDelay < 0 {
		errs = append(errs, errors.New("retry: max delay cannot be negative"))
	}
	return errors.Join(errs...)
}

// Delay returns the wait before retry n (zero-based):
// InitialDelay * BackoffMultiplier^n, capped at MaxDelay when set.
func (p Policy) Delay(n int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(n))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Schedule lists every wait the policy allows, in order.
func (p Policy) Schedule() []time.Duration {
	if p.MaxRetries <= 0 {
		return nil
	}
	out := make([]time.Duration, p.MaxRetries)
	for i := range out {
		out[i] = p.Delay(i)
	}
	return out
}

// backOff builds a fresh schedule for one call. Jitter and the elapsed-time
// limit are disabled so the waits are exactly Delay(0), Delay(1), ...
func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.BackoffMultiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
		b.InitialInterval = min(p.InitialDelay, p.MaxDelay)
	}
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(max(p.MaxRetries, 0)))
}
