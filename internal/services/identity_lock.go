package services

import "sync"

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializes operations per normalized identity. Entries are
// reference counted and removed once the last holder releases, so the
// map does not grow with the set of identities ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

// NewKeyedMutex creates a new KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*identityLock)}
}

// Lock acquires the mutex for key and returns the matching unlock
// function. Callers must not hold the lock across slow operations such
// as outbound email sends.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &identityLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
