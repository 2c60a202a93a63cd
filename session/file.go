package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 20 * time.Millisecond

// FileStore persists the session as a JSON file so separate CLI invocations
// share one sign-in. A sibling ".lock" file serializes access across
// processes and mu serializes goroutines sharing this store, since a
// flock.Flock tracks one holder per instance.
type FileStore struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by path. The parent directory is
// created on first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session: file path is required")
	}
	return &FileStore{path: path, lock: flock.New(path + ".lock")}, nil
}

// Path returns the session file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(ctx context.Context) (*Session, error) {
	if err := f.ensureDir(); err != nil {
		return nil, err
	}
	if err := f.acquire(ctx, false); err != nil {
		return nil, err
	}
	defer f.release()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", f.path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", f.path, err)
	}
	if s.Token == "" {
		return nil, ErrNoSession
	}
	return &s, nil
}

func (f *FileStore) Save(ctx context.Context, s *Session) error {
	if err := validateForSave(s); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := f.ensureDir(); err != nil {
		return err
	}
	if err := f.acquire(ctx, true); err != nil {
		return err
	}
	defer f.release()

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("session: replace %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	if err := f.ensureDir(); err != nil {
		return err
	}
	if err := f.acquire(ctx, true); err != nil {
		return err
	}
	defer f.release()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) Token(ctx context.Context) (string, error) {
	return tokenFromLoad(f.Load(ctx))
}

func (f *FileStore) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("session: create directory: %w", err)
	}
	return nil
}

func (f *FileStore) acquire(ctx context.Context, exclusive bool) error {
	f.mu.Lock()
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = f.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = f.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("session: lock %s: %w", f.lock.Path(), err)
	}
	if !locked {
		f.mu.Unlock()
		return fmt.Errorf("session: lock %s: not acquired", f.lock.Path())
	}
	return nil
}

func (f *FileStore) release() {
	_ = f.lock.Unlock()
	f.mu.Unlock()
}
