// Package keylock serializes work per key inside one process.
package keylock

import (
	"context"
	"sync"
)

// entry is the lock state of one key: whether it is held and who is queued.
type entry struct {
	held    bool
	waiters []chan struct{}
}

// Locker hands out one lock per key and forgets keys nobody holds or waits on.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Locker {
	return &Locker{entries: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done. The returned func releases the lock.
// Waiters acquire the key in the order they called Lock, so mutations queued
// on one cart apply in issue order.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	if !e.held {
		e.held = true
		l.mu.Unlock()
		return l.unlocker(key, e), nil
	}
	ticket := make(chan struct{})
	e.waiters = append(e.waiters, ticket)
	l.mu.Unlock()

	select {
	case <-ticket:
		return l.unlocker(key, e), nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	for i, w := range e.waiters {
		if w == ticket {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			l.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	l.mu.Unlock()
	// The lock was handed over while ctx fired; pass it on.
	l.unlock(key, e)
	return nil, ctx.Err()
}

func (l *Locker) unlocker(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.unlock(key, e) })
	}
}

// unlock hands the key to the oldest waiter, or frees it.
func (l *Locker) unlock(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(e.waiters) > 0 {
		next := e.waiters[0]
		e.waiters = e.waiters[1:]
		close(next)
		return
	}
	e.held = false
	delete(l.entries, key)
}

// Len reports the number of keys currently tracked.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
