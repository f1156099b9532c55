/*
locks.go - Per-account mutual exclusion

PURPOSE:
  Serializes write operations per account id. Operations on the same
  account execute one at a time; operations on different accounts run
  fully in parallel with no shared mutable state.

SHAPE:
  A keyed lock table, not a single global lock. Each account gets a
  1-slot channel semaphore, created on first use and released with
  reference counting so the table does not grow with dead accounts.

TIMEOUT:
  Acquire gives up after the configured timeout (or context cancellation)
  and returns ErrConcurrencyConflict. The Service retries a bounded number
  of times; no lock is ever held across calls.
*/
package credit

import (
	"context"
	"sync"
	"time"
)

type lockTable struct {
	mu      sync.Mutex
	locks   map[AccountID]*accountLock
	timeout time.Duration
}

type accountLock struct {
	sem  chan struct{}
	refs int
}

func newLockTable(timeout time.Duration) *lockTable {
	return &lockTable{
		locks:   make(map[AccountID]*accountLock),
		timeout: timeout,
	}
}

// Acquire blocks until the account's lock is held, the timeout elapses, or
// ctx is cancelled. On success the returned release func MUST be called.
func (t *lockTable) Acquire(ctx context.Context, id AccountID) (release func(), err error) {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &accountLock{sem: make(chan struct{}, 1)}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			t.put(id, l)
		}, nil
	case <-timer.C:
		t.put(id, l)
		return nil, ErrConcurrencyConflict
	case <-ctx.Done():
		t.put(id, l)
		return nil, ctx.Err()
	}
}

func (t *lockTable) put(id AccountID, l *accountLock) {
	t.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, id)
	}
	t.mu.Unlock()
}
