// Package dirlock guards an Ignite data directory against being opened by
// more than one process at once, using a flock(2)-based advisory lock on
// a sentinel file inside the directory.
package dirlock

import (
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// LockFileName is the sentinel file an Engine locks for the lifetime of
// the process that opened it.
const LockFileName = "ignite.lock"

// Lock is an acquired exclusive lock on a data directory.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes an exclusive, non-blocking lock on dir. It fails with a
// DirectoryInUse error if another process already holds the lock.
func Acquire(dir string) (*Lock, error) {
	path := filepath.Join(dir, LockFileName)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to acquire directory lock").
			WithPath(path)
	}
	if !locked {
		return nil, errors.NewEngineError(errors.ErrDirectoryInUse, errors.ErrorCodeDirectoryInUse, "data directory is already in use").
			WithDetail("path", dir)
	}

	return &Lock{fl: fl}, nil
}

// Release gives up the lock. The directory may be opened by another
// process afterward.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to release directory lock").
			WithPath(l.fl.Path())
	}
	return nil
}
