package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSameKeySerializes(t *testing.T) {
	kl := New()
	counter := 0

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kl.Lock("user-1")
			defer kl.Unlock("user-1")
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, n, counter)
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	kl := New()

	kl.Lock("user-1")
	defer kl.Unlock("user-1")

	done := make(chan struct{})
	go func() {
		kl.Lock("user-2")
		kl.Unlock("user-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}
