package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionLocksSerializesSameID(t *testing.T) {
	locks := newSessionLocks()
	id := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(id)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestSessionLocksIndependentIDs(t *testing.T) {
	locks := newSessionLocks()
	a, b := uuid.New(), uuid.New()

	unlockA := locks.Lock(a)
	// must not block even while a is held
	unlockB := locks.Lock(b)
	unlockB()
	unlockA()
}

func TestSessionLocksCleanup(t *testing.T) {
	locks := newSessionLocks()
	id := uuid.New()

	unlock := locks.Lock(id)
	unlock()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
