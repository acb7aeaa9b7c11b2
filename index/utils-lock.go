package index

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Lock is an advisory lock on the index's lock file. Exclusive locks exclude
// every other holder; shared locks only exclude exclusive ones.
type Lock struct {
	file *os.File
}

// LockExclusive blocks until the exclusive index lock is held.
func LockExclusive(root string) (*Lock, error) {
	return acquire(root, true)
}

// LockShared blocks until a shared index lock is held.
func LockShared(root string) (*Lock, error) {
	return acquire(root, false)
}

func acquire(root string, exclusive bool) (*Lock, error) {
	lockPath := filepath.Join(root, LockFile)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, wrapError(ErrLockFailed, err, "Failed to open lock file `%s`", lockPath)
	}
	if err := flock(f, exclusive); err != nil {
		f.Close()
		if errors.Is(err, ErrLockUnavailable) {
			return nil, wrapError(ErrLockUnavailable, err, "Cannot lock `%s`", lockPath)
		}
		return nil, wrapError(ErrLockFailed, err, "Failed to lock `%s`", lockPath)
	}
	return &Lock{file: f}, nil
}

// Release unlocks and closes the lock file. Calling it more than once, or on
// a nil Lock, is a no-op.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = funlock(l.file)
	_ = l.file.Close()
	l.file = nil
}
