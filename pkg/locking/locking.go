// Package locking provides the mutation coordinator: a registry of keyed
// locks serializing permission mutations. Creation uses a single global key
// so existence checks and inserts are atomic across the whole permission
// namespace; updates lock the record's own IRI so unrelated records stay
// concurrent.
package locking

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// CreationKey is the lock key for permission creation. Duplicate checks for
// new records span the whole (project, selector) namespace, so creation is
// serialized globally.
const CreationKey = "stelae:permissions:create"

// entry pairs a weight-1 semaphore with the number of goroutines that
// currently hold or wait for it, so idle entries can be dropped.
type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Registry hands out at most one in-flight operation per key. Lock handles
// are created lazily and removed once uncontended; the registry does not
// grow with the number of keys ever seen.
//
// Waiting is fair enough for the coordinator's needs: semaphore.Weighted
// queues waiters in FIFO order, so no caller starves. Acquisition honors
// context cancellation, which keeps an abandoning caller from occupying a
// queue slot; the registry itself imposes no timeout.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	// WaitObserver, if set, is called with the time a caller spent waiting
	// to acquire a key. Used to feed the lock-wait histogram.
	WaitObserver func(key string, wait time.Duration)
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func (r *Registry) retain(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		r.entries[key] = e
	}
	e.refs++
	return e
}

func (r *Registry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(r.entries, key)
	}
}

// WithLock runs op while holding the lock for key. A second caller on the
// same key blocks until the first completes; callers on other keys are
// unaffected. The lock is released unconditionally, whether op succeeds,
// fails, or panics. If ctx is canceled before acquisition, op never runs
// and the context error is returned.
func (r *Registry) WithLock(ctx context.Context, key string, op func(ctx context.Context) error) error {
	e := r.retain(key)

	start := time.Now()
	if err := e.sem.Acquire(ctx, 1); err != nil {
		r.release(key)
		return err
	}
	if r.WaitObserver != nil {
		r.WaitObserver(key, time.Since(start))
	}

	defer func() {
		e.sem.Release(1)
		r.release(key)
	}()
	return op(ctx)
}

// Len reports the number of keys with live lock handles. Exposed for tests
// and for the registry size gauge.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
