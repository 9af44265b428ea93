package indexer

import "sync/atomic"

// RunLock admits one full reindex at a time without blocking callers that
// lose the race
type RunLock struct {
	state atomic.Int32 // 0 = idle, 1 = running
}

// TryAcquire returns true if the caller may start a run
func (l *RunLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release ends the run started by a successful TryAcquire
func (l *RunLock) Release() {
	l.state.Store(0)
}

// Running reports whether a run holds the lock
func (l *RunLock) Running() bool {
	return l.state.Load() == 1
}
