// Package session keeps per-caller navigation state in memory.
package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry maps caller ids to session values of type V. Values are stored
// by copy, so a caller never observes another goroutine's half-built state.
type Registry[V any] struct {
	items *cache.Cache
	locks *keyedMutex
}

// New returns a registry whose entries expire ttl after their last Put.
// ttl <= 0 keeps entries until removed. cleanup is the janitor interval.
func New[V any](ttl, cleanup time.Duration) *Registry[V] {
	exp := cache.NoExpiration
	if ttl > 0 {
		exp = ttl
	}
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &Registry[V]{
		items: cache.New(exp, cleanup),
		locks: newKeyedMutex(),
	}
}

func key(callerID int64) string {
	return strconv.FormatInt(callerID, 10)
}

func (r *Registry[V]) Get(callerID int64) (V, bool) {
	var zero V
	v, ok := r.items.Get(key(callerID))
	if !ok {
		return zero, false
	}
	s, ok := v.(V)
	if !ok {
		return zero, false
	}
	return s, true
}

func (r *Registry[V]) Put(callerID int64, s V) {
	r.items.Set(key(callerID), s, cache.DefaultExpiration)
}

func (r *Registry[V]) Remove(callerID int64) {
	r.items.Delete(key(callerID))
}

// Len counts stored sessions, including expired ones the janitor has not
// collected yet.
func (r *Registry[V]) Len() int {
	return r.items.ItemCount()
}

// Lock serializes work for one caller. Different callers never contend.
func (r *Registry[V]) Lock(callerID int64) (unlock func()) {
	return r.locks.lock(callerID)
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds
// or waits on it.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[int64]*lockEntry)}
}

func (k *keyedMutex) lock(id int64) func() {
	k.mu.Lock()
	e, ok := k.entries[id]
	if !ok {
		e = &lockEntry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, id)
			}
			k.mu.Unlock()
		})
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
