package observability

import (
	"context"
	"fmt"
	"time"
)

// DefaultShutdownTimeout bounds Shutdown when no timeout is given.
const DefaultShutdownTimeout = 10 * time.Second

// Shutdown flushes and stops provider within timeout.
func Shutdown(provider Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("observability shutdown failed: %w", err)
	}
	return nil
}
