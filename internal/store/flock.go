package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout is the default timeout for acquiring a file lock.
const DefaultLockTimeout = 5 * time.Second

// ErrLocked is returned when another process holds the lock past the timeout.
var ErrLocked = errors.New("lock held by another process")

// WithLock acquires an exclusive lock on path.lock, runs fn, then releases.
// The lock file lives beside path so that path itself may be removed and
// recreated while the lock is held. A non-positive timeout means
// DefaultLockTimeout.
func WithLock(ctx context.Context, path string, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	lockPath := path + ".lock"
	fileLock := flock.New(lockPath)

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("acquiring lock on %s: %w", lockPath, ErrLocked)
		}
		return fmt.Errorf("acquiring lock on %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("acquiring lock on %s: %w", lockPath, ErrLocked)
	}
	defer fileLock.Unlock()

	return fn()
}
