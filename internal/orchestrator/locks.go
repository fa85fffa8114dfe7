package orchestrator

import "sync"

// lockSet guarantees at most one in-flight run per source. Every acquisition
// hands out a fresh monotonic token, and Release only unlocks when the token
// matches, so a stale release cannot unlock a newer run.
type lockSet struct {
	mu        sync.Mutex
	held      map[string]uint64
	lastToken uint64
}

func newLockSet() *lockSet {
	return &lockSet{held: make(map[string]uint64)}
}

// TryAcquire claims the source. The check and the claim happen under one
// lock, so two concurrent callers can never both succeed.
func (l *lockSet) TryAcquire(source string) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[source]; ok {
		return 0, false
	}
	l.lastToken++
	l.held[source] = l.lastToken
	return l.lastToken, true
}

// Release unlocks the source if token still owns it.
func (l *lockSet) Release(source string, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[source] == token {
		delete(l.held, source)
	}
}
