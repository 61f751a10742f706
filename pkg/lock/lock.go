package lock

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker serializes work per key. Unlock must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
