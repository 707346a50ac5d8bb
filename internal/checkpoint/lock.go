// internal/checkpoint/lock.go
package checkpoint

import (
	"fmt"
	"os"
	"time"
)

// staleLockAge is how old a lock file may be before it is considered left
// behind by a crashed process and broken.
const staleLockAge = 10 * time.Minute

// dirLock is an advisory lock file serializing store operations for one
// project directory. It is held for create/restore/cleanup, never across a
// provider call.
type dirLock struct {
	path string
}

// acquire takes the lock or returns ErrLocked if another live process holds
// it. A lock file older than staleLockAge is removed and retried once.
func acquire(path string) (*dirLock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &dirLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			// Holder released between our attempts; retry.
			continue
		}
		if time.Since(info.ModTime()) < staleLockAge {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("break stale lock: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrLocked, path)
}

// release removes the lock file.
func (l *dirLock) release() {
	os.Remove(l.path)
}
