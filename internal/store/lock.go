package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// IndexLock provides cross-process file locking using gofrs/flock.
// This prevents two apidex processes from writing the same index
// directory simultaneously. Works on Unix, Linux, macOS, Windows.
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool // explicit state tracking for clarity
}

// NewIndexLock creates a lock for the given index data directory.
// The lock file is created at <dir>/.index.lock
func NewIndexLock(dir string) *IndexLock {
	lockPath := filepath.Join(dir, ".index.lock")
	return &IndexLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock acquires an exclusive lock, blocking until available.
// The lock file is created if it doesn't exist.
func (l *IndexLock) Lock() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if held by another process.
func (l *IndexLock) TryLock() (bool, error) {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call multiple times.
func (l *IndexLock) Unlock() error {
	if !l.locked {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("failed to release lock: %w", err)
	}

	l.locked = false
	return nil
}

// Path returns the path to the lock file.
func (l *IndexLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *IndexLock) IsLocked() bool {
	return l.locked
}
