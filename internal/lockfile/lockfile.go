// Package lockfile guards the workspace against concurrent server
// processes sharing one database file.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock holds an advisory file lock on the workspace
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the workspace lock without blocking. A held lock means
// another foreman process is serving this workspace.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(dir, "foreman.lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire workspace lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("workspace %s is already served by another process", dir)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
