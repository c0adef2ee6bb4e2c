package session

import "sync"

// Locker serializes all event handling for a single user. Workflow steps
// read-then-write Session/Cart without compare-and-set, so two concurrent
// updates from the same user (a double-tap on "confirm order") must not
// interleave. Events from different users proceed in parallel.
type Locker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewLocker constructs an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for the given user and returns its unlock
// function. User mutexes are created on first use and kept for the process
// lifetime; the per-user footprint is one mutex.
func (l *Locker) Lock(userID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
