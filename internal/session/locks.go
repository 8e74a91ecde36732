package session

import (
	"sync"

	"github.com/google/uuid"
)

// sessionLocks serializes operations per session ID. Entries are
// reference-counted and removed once the last holder unlocks, so the map
// does not grow with session history.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

// Lock blocks until the caller holds the session's lock. The returned
// function releases it.
func (l *sessionLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
