package locksvc

import (
	"context"
	"sync"
	"time"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

type (
	localLocker struct {
		mu    sync.Mutex
		slots map[string]*slot
	}

	// slot is dropped from the map once no holder or waiter references it.
	slot struct {
		ch   chan struct{}
		refs int
	}
)

var _ core.Locker = (*localLocker)(nil)

// NewLocalLocker hands out locks scoped to the current process. ttl is ignored.
func NewLocalLocker() core.Locker {
	return &localLocker{slots: make(map[string]*slot)}
}

func (l *localLocker) acquire(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *localLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Obtain blocks until the lock is free or ctx is done.
func (l *localLocker) Obtain(ctx context.Context, key string, _ time.Duration) (core.Lock, error) {
	s := l.acquire(key)
	select {
	case s.ch <- struct{}{}:
		return &localLock{locker: l, key: key, slot: s}, nil
	case <-ctx.Done():
		l.drop(key, s)
		return nil, core.ErrLockNotObtained
	}
}

type localLock struct {
	once   sync.Once
	locker *localLocker
	key    string
	slot   *slot
}

func (lk *localLock) Release(context.Context) error {
	lk.once.Do(func() {
		<-lk.slot.ch
		lk.locker.drop(lk.key, lk.slot)
	})
	return nil
}
