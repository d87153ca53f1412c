package conversation

import (
	"context"
	"sync"
)

type heldSessionKey struct{}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks serializes work per session key. Locks are reference counted
// and dropped once no goroutine holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire locks key unless ctx already carries it, which is the case for
// callbacks that start a new chain for their own session.
func (l *sessionLocks) acquire(ctx context.Context, key string) (context.Context, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if held, _ := ctx.Value(heldSessionKey{}).(string); held == key {
		return ctx, func() {}
	}

	l.mu.Lock()
	sl, ok := l.locks[key]
	if !ok {
		sl = &sessionLock{}
		l.locks[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	release := func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
	return context.WithValue(ctx, heldSessionKey{}, key), release
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
