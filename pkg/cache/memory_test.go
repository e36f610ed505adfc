package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetPutInvalidate(t *testing.T) {
	c := NewMemory[string](DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "k", "v"))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	require.NoError(t, c.Invalidate(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// invalidating a missing key is a no-op
	assert.NoError(t, c.Invalidate(ctx, "missing"))
}

func TestMemoryPutReplaces(t *testing.T) {
	c := NewMemory[string](DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", "old"))
	require.NoError(t, c.Put(ctx, "k", "new"))

	got, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestMemoryTTLExpiry(t *testing.T) {
	c := NewMemory[string](Config{MaxEntries: 8, TTL: 10 * time.Millisecond})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", "v"))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryEviction(t *testing.T) {
	c := NewMemory[int](Config{MaxEntries: 2, TTL: time.Minute})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", 1))
	require.NoError(t, c.Put(ctx, "b", 2))
	require.NoError(t, c.Put(ctx, "c", 3))

	_, okA, _ := c.Get(ctx, "a")
	_, okC, _ := c.Get(ctx, "c")
	assert.False(t, okA)
	assert.True(t, okC)
}

func TestMemoryStats(t *testing.T) {
	c := NewMemory[string](DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	c.Get(ctx, "k")
	c.Put(ctx, "k", "v")
	c.Get(ctx, "k")
	c.Get(ctx, "k")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}
