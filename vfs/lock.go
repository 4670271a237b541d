package vfs

import "sync"

// reservedLock models the per-volume exclusive writer-admission mutex. It is
// acquired by one call (Shared -> Reserved) and released by a later, unrelated call
// (Reserved -> Shared, or the cleanup path on Unlocked after a failed
// commit) — a lifecycle a plain sync.Mutex cannot express safely across
// goroutines, so this type tracks held state explicitly instead of reusing
// one.
type reservedLock struct {
	mu   sync.Mutex
	held bool
}

// tryAcquire attempts to take the lock without blocking. It reports false
// if another File already holds it.
func (l *reservedLock) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false
	}
	l.held = true
	return true
}

// forceRelease releases the lock regardless of which File last acquired it —
// the "force-unlock" half of the leak-then-force-unlock idiom.
func (l *reservedLock) forceRelease() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
}
