// Package lock provides the process-wide singleton guard for zmssl.
//
// Only one pipeline run may be active system-wide. The lock is a marker
// file created with O_CREATE|O_EXCL so that check and create are a single
// atomic operation; a plain exists-then-create sequence would leave a race
// window between two invocations started at the same moment.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/annahri/zmssl/internal/errors"
)

// markerFile is the lock marker name under the system temp directory.
const markerFile = "zmssl.lock"

// Lock is a filesystem-backed mutual exclusion marker.
type Lock struct {
	path string
}

// New creates a Lock at the given marker path.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Default returns the lock at the conventional marker path.
func Default() *Lock {
	return New(filepath.Join(os.TempDir(), markerFile))
}

// Path returns the marker path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire atomically creates the marker file holding this PID.
// Fails with ErrAlreadyRunning if the marker already exists.
func (l *Lock) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return errors.ErrAlreadyRunning
		}
		return errors.Wrap(errors.ErrCodePrecondition, "failed to create lock marker", err)
	}
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	return f.Close()
}

// Release removes the marker unconditionally. Callers must invoke it on
// every termination path, not just on success. Releasing an already
// released lock is not an error.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInternal, "failed to remove lock marker", err)
	}
	return nil
}

// Held reports whether the marker currently exists.
func (l *Lock) Held() bool {
	_, err := os.Stat(l.path)
	return err == nil
}
