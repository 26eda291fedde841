// Package runlock serializes libconv runs against one library with an
// advisory file lock.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("another libconv run holds the lock")

// Lock is a held run lock. A nil *Lock is valid and releases nothing.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the lock at path without blocking. An empty path disables
// locking and returns a nil lock.
func Acquire(path string) (*Lock, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return &Lock{path: path, lock: lock}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
