package vfs

import (
	"sync"

	"github.com/graftdb/graft/core"
)

// LockRegistry hands out the shared reservedLock for a volume id, so every
// File opened against the same volume — potentially from different threads,
// since SQLite's lock lifecycle spans multiple calls — contends on the same
// admission gate.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[core.VolumeId]*reservedLock
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[core.VolumeId]*reservedLock)}
}

func (r *LockRegistry) get(vid core.VolumeId) *reservedLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[vid]
	if !ok {
		l = &reservedLock{}
		r.locks[vid] = l
	}
	return l
}
