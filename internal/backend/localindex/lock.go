package localindex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrDataDirLocked is returned when another process holds the data directory.
var ErrDataDirLocked = errors.New("data directory is locked by another process")

// dirLock provides cross-process exclusion on a data directory using
// gofrs/flock. The lock file lives at <dir>/.idxstore.lock.
type dirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newDirLock(dir string) *dirLock {
	lockPath := filepath.Join(dir, ".idxstore.lock")
	return &dirLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. It fails with
// ErrDataDirLocked if another process holds it.
func (l *dirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrDataDirLocked, l.path)
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call more than once.
func (l *dirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
