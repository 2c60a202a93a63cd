package retry

import (
	"context"
	"fmt"
	"time"
)

// State is where a single Run is in its lifecycle.
type State int

const (
	Attempting State = iota
	Waiting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Waiting:
		return "waiting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is reported on every state transition.
type Status struct {
	State State
	// Attempt is zero-based: 0 is the first call, 1 the first retry.
	Attempt    int
	MaxRetries int
	// Delay is the upcoming wait. Set only when State is Waiting.
	Delay time.Duration
	// Err is the failure that led to Waiting or Failed.
	Err error
}

func (s Status) String() string {
	switch s.State {
	case Waiting:
		return fmt.Sprintf("%s attempt %d/%d, next in %s", s.State, s.Attempt+1, s.MaxRetries+1, s.Delay)
	default:
		return fmt.Sprintf("%s attempt %d/%d", s.State, s.Attempt+1, s.MaxRetries+1)
	}
}

// StatusFunc observes transitions. It runs synchronously on the caller's goroutine.
type StatusFunc func(Status)

type statusCtxKey struct{}

// StatusFromContext returns the Attempting status of the current attempt when
// called from inside an operation run by an Executor.
func StatusFromContext(ctx context.Context) (Status, bool) {
	s, ok := ctx.Value(statusCtxKey{}).(Status)
	return s, ok
}
