package lockset_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/printfleet/printfleet/internal/infrastructure/lockset"
)

func TestLock_SerializesSameKey(t *testing.T) {
	s := lockset.New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("job:1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLock_DistinctKeysDoNotBlockEachOther(t *testing.T) {
	s := lockset.New()

	unlockA := s.Lock("job:1")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := s.Lock("spool:1")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a distinct key blocked")
	}
}

func TestLock_ReacquireAfterUnlock(t *testing.T) {
	s := lockset.New()

	unlock := s.Lock("job:1")
	unlock()

	done := make(chan struct{})
	go func() {
		unlock := s.Lock("job:1")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("could not reacquire released lock")
	}
}
