package service

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := newKeyedMutex()

	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Lock("42:9")
			counter++
			locks.Unlock("42:9")
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Fatalf("counter = %d, want %d", counter, workers)
	}
}

func TestKeyedMutexIndependentKeysDoNotBlock(t *testing.T) {
	locks := newKeyedMutex()

	locks.Lock("42:9")
	done := make(chan struct{})
	go func() {
		locks.Lock("43:9")
		locks.Unlock("43:9")
		close(done)
	}()
	<-done
	locks.Unlock("42:9")
}

func TestKeyedMutexReleasesIdleEntries(t *testing.T) {
	locks := newKeyedMutex()

	locks.Lock("42:9")
	locks.Unlock("42:9")

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.locks) != 0 {
		t.Fatalf("idle entries left in map: %d", len(locks.locks))
	}
}
