package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type state struct {
	Name  string
	Items []int
}

func TestRegistryGetPutRemove(t *testing.T) {
	t.Parallel()
	r := New[state](0, time.Minute)

	_, ok := r.Get(1)
	require.False(t, ok)

	r.Put(1, state{Name: "years", Items: []int{2020}})
	r.Put(2, state{Name: "task"})
	got, ok := r.Get(1)
	require.True(t, ok)
	require.Equal(t, "years", got.Name)
	require.Equal(t, 2, r.Len())

	r.Remove(1)
	_, ok = r.Get(1)
	require.False(t, ok)
	require.Equal(t, 1, r.Len())
}

func TestRegistryTTL(t *testing.T) {
	t.Parallel()
	r := New[state](20*time.Millisecond, time.Minute)

	r.Put(7, state{Name: "x"})
	_, ok := r.Get(7)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		_, ok := r.Get(7)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestLockSerializesOneCaller(t *testing.T) {
	t.Parallel()
	r := New[state](0, time.Minute)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := r.Lock(5)
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside)
	require.Zero(t, r.locks.size(), "idle locks are released")
}

func TestLockDifferentCallersDoNotBlock(t *testing.T) {
	t.Parallel()
	r := New[state](0, time.Minute)

	unlockA := r.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock := r.Lock(2)
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("caller 2 blocked behind caller 1")
	}
	unlockA()
	unlockA()
	require.Zero(t, r.locks.size())
}
