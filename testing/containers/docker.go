//go:build integration

package containers

import (
	"context"

	"github.com/testcontainers/testcontainers-go"
)

// isDockerAvailable reports whether the testcontainers Docker provider can
// reach a daemon.
func isDockerAvailable(ctx context.Context) bool {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}
