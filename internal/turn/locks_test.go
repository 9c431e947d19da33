package turn

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_EvictsIdleKeys(t *testing.T) {
	km := newKeyedMutex()

	for i := 0; i < 100; i++ {
		unlock := km.Lock("anon:sid-" + string(rune('a'+i%26)))
		unlock()
	}
	assert.Equal(t, 0, km.size(), "released keys must not accumulate")
}

func TestKeyedMutex_ExclusivePerKey(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("user:7")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("user:1")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("user:2")
		unlock()
		close(done)
	}()
	<-done

	assert.Equal(t, 1, km.size(), "only the held key should remain")
}
