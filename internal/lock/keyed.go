// Package lock provides bounded-wait mutual exclusion per key.
//
// The bidding engine serializes all writers of a lot's price tuple behind one
// of these semaphores (key = lot id) in addition to the row lock taken inside
// the commit transaction. A caller that cannot enter within its context
// deadline gets the context error back instead of blocking indefinitely; the
// service layer reports that as a retryable contention result.
package lock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Keyed hands out one binary semaphore per key. Entries are reference-counted
// and removed once the last interested goroutine releases, so the map does not
// accumulate an entry per lot ever bid on.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Acquire blocks until the key's semaphore is held or ctx is done. On success
// it returns a release function that must be called exactly once.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-e.sem
				k.unref(key, e)
			})
		}
		return release, nil
	case <-ctx.Done():
		k.unref(key, e)
		return nil, ctx.Err()
	}
}

func (k *Keyed) unref(key string, e *entry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}
