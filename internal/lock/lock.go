// Package lock serialises work on the same media item across goroutines or
// processes.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired indicates the lock is held elsewhere and could not be taken
// before giving up.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out named mutexes. The returned unlock func must be called
// exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
