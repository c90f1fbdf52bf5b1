package index

import "sync/atomic"

// repoLock is a non-blocking lock guarding one repository root. Indexing
// the same root twice concurrently would race on the manifest, so the
// second caller is rejected instead of queued.
type repoLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// tryAcquire acquires the lock without blocking and reports success.
func (l *repoLock) tryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// release releases the lock. Must only be called by the goroutine that
// acquired it.
func (l *repoLock) release() {
	l.state.Store(0)
}
