package core

import (
	"context"
	"errors"
	"time"
)

var ErrLockNotObtained = errors.New("lock not obtained")

type (
	// Locker hands out named, time bounded locks.
	Locker interface {
		Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	}

	Lock interface {
		Release(ctx context.Context) error
	}
)
