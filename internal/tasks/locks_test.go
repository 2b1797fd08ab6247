package tasks

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("Serializes Same Key", func(t *testing.T) {
		km := NewKeyedMutex()
		var active, peak int32
		var wg sync.WaitGroup

		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := km.Lock("project:p1")
				defer unlock()

				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
			}()
		}
		wg.Wait()

		if peak != 1 {
			t.Errorf("expected at most one holder, saw %d", peak)
		}
	})

	t.Run("Distinct Keys Do Not Block", func(t *testing.T) {
		km := NewKeyedMutex()
		unlockA := km.Lock("item:a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlock := km.Lock("item:b")
			unlock()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on a different key blocked")
		}
	})

	t.Run("Entries Released", func(t *testing.T) {
		km := NewKeyedMutex()
		unlock := km.Lock("item:a")
		if km.size() != 1 {
			t.Errorf("expected 1 live region, got %d", km.size())
		}
		unlock()
		if km.size() != 0 {
			t.Errorf("expected regions to be released, got %d", km.size())
		}
	})
}
