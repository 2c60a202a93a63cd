//go:build integration

package containers

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisConfig holds settings for the redis test container.
type RedisConfig struct {
	// ImageTag selects the redis image (default "7-alpine").
	ImageTag       string
	StartupTimeout time.Duration
}

// DefaultRedisConfig returns the 7-alpine image with a 60 second startup budget.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		ImageTag:       "7-alpine",
		StartupTimeout: 60 * time.Second,
	}
}

// Redis wraps a running redis container backing a session store under test.
type Redis struct {
	container *redis.RedisContainer
	host      string
	port      int
}

// StartRedis starts a redis container. A nil cfg selects DefaultRedisConfig.
// The test is skipped when no Docker daemon is reachable.
func StartRedis(ctx context.Context, t *testing.T, cfg *RedisConfig) (*Redis, error) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	if !isDockerAvailable(ctx) {
		t.Skip("Docker is not available - skipping integration test")
		return nil, nil
	}

	c, err := redis.Run(ctx,
		fmt.Sprintf("redis:%s", cfg.ImageTag),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get redis host: %w", err)
	}

	mapped, err := c.MappedPort(ctx, "6379/tcp")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get redis port: %w", err)
	}

	t.Logf("redis container listening on %s:%d", host, mapped.Int())

	return &Redis{container: c, host: host, port: mapped.Int()}, nil
}

// MustStartRedis is StartRedis that fails the test on error and terminates
// the container at cleanup.
func MustStartRedis(ctx context.Context, t *testing.T, cfg *RedisConfig) *Redis {
	t.Helper()

	r, err := StartRedis(ctx, t, cfg)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Terminate(context.Background()); err != nil {
			t.Logf("warning: failed to terminate redis container: %v", err)
		}
	})
	return r
}

// Addr returns host:port for redis.Options.Addr.
func (r *Redis) Addr() string {
	return net.JoinHostPort(r.host, strconv.Itoa(r.port))
}

// Terminate stops and removes the container.
func (r *Redis) Terminate(ctx context.Context) error {
	if r == nil || r.container == nil {
		return nil
	}
	return r.container.Terminate(ctx)
}
