package locking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockSerializesSameKey(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	const workers = 32
	var counter int // guarded by the lock, not by sync primitives
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := r.WithLock(ctx, "key", func(context.Context) error {
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestWithLockDifferentKeysRunConcurrently(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	aHeld := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- r.WithLock(ctx, "a", func(context.Context) error {
			close(aHeld)
			<-release
			return nil
		})
	}()

	<-aHeld
	// key "b" must not queue behind "a"
	err := r.WithLock(ctx, "b", func(context.Context) error { return nil })
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestWithLockPropagatesOpError(t *testing.T) {
	r := NewRegistry()
	sentinel := errors.New("boom")

	err := r.WithLock(context.Background(), "key", func(context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	// the key must be usable again after a failed op
	assert.NoError(t, r.WithLock(context.Background(), "key", func(context.Context) error { return nil }))
}

func TestWithLockHonorsCancellation(t *testing.T) {
	r := NewRegistry()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- r.WithLock(context.Background(), "key", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.WithLock(ctx, "key", func(context.Context) error {
		t.Fatal("op must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-done)
}

func TestRegistryDropsIdleEntries(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	require.NoError(t, r.WithLock(ctx, "a", func(context.Context) error { return nil }))
	require.NoError(t, r.WithLock(ctx, "b", func(context.Context) error { return nil }))

	assert.Equal(t, 0, r.Len())
}

func TestRegistryCountsLiveKeys(t *testing.T) {
	r := NewRegistry()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- r.WithLock(context.Background(), "a", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	assert.Equal(t, 1, r.Len())
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, r.Len())
}

func TestWaitObserverReportsContention(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	waits := map[string]int{}
	r.WaitObserver = func(key string, wait time.Duration) {
		mu.Lock()
		waits[key]++
		mu.Unlock()
	}

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- r.WithLock(context.Background(), CreationKey, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	second := make(chan error, 1)
	go func() {
		second <- r.WithLock(context.Background(), CreationKey, func(context.Context) error { return nil })
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, waits[CreationKey])
}
