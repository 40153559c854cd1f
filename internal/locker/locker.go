// Package locker serializes appends per poll. Acquire waits a bounded time
// for the key and fails with ErrContended instead of queueing forever.
package locker

import (
	"context"
	"sync"
	"time"

	ledger_errors "hoa-ledger/pkg/errors"
)

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

type entry struct {
	token chan struct{}
	refs  int
}

// KeyedMutex is an in-process Locker with one mutex per key. Entries are
// reference counted and dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
	wait  time.Duration
}

func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*entry),
		wait:  wait,
	}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{token: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	timer := time.NewTimer(k.wait)
	defer timer.Stop()

	select {
	case e.token <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.token
				k.unref(key, e)
			})
		}, nil
	case <-ctx.Done():
		k.unref(key, e)
		return nil, ctx.Err()
	case <-timer.C:
		k.unref(key, e)
		return nil, ledger_errors.ErrContended
	}
}

func (k *KeyedMutex) unref(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
