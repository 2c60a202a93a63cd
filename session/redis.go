package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKey = "carekit:session"
	pingTimeout     = 5 * time.Second
)

// ErrClosed is returned when a closed RedisStore is used.
var ErrClosed = errors.New("session: store closed")

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Key is the redis key holding the session (default "carekit:session").
	Key string
	// TTL expires the stored session. Zero keeps it until Clear.
	TTL time.Duration
}

// Validate performs fail-fast validation of the redis settings.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("session: redis addr is required")
	}
	if c.DB < 0 || c.DB > 15 {
		return fmt.Errorf("session: invalid redis db %d (must be 0-15)", c.DB)
	}
	if c.TTL < 0 {
		return errors.New("session: redis ttl cannot be negative")
	}
	return nil
}

// RedisStore keeps the session under a single redis key, letting several
// operator machines share one sign-in.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	closed atomic.Bool
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redis and verifies the connection with PING.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session: redis ping %s: %w", cfg.Addr, err)
	}

	return NewRedisStoreWithClient(client, cfg.Key, cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client. The store takes
// ownership and closes it on Close.
func NewRedisStoreWithClient(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (*Session, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get %s: %w", r.key, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", r.key, err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := validateForSave(s); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set %s: %w", r.key, err)
	}
	return nil
}

// Clear deletes the key. DEL on a missing key succeeds, so repeated clears
// are harmless.
func (r *RedisStore) Clear(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("session: redis del %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Token(ctx context.Context) (string, error) {
	return tokenFromLoad(r.Load(ctx))
}

// Close releases the redis connection. Calling it twice returns ErrClosed.
func (r *RedisStore) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return r.client.Close()
}
