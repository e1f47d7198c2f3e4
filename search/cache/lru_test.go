package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU[string, int](4, time.Minute)

	_, ok := c.Get("a")
	require.False(t, ok)

	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	// Overwrite replaces the value under the same key.
	c.Set("a", 2, 0)
	v, _ = c.Get("a")
	require.Equal(t, 2, v)
	require.Equal(t, 1, c.Len())
}

func TestLRU_Expiry(t *testing.T) {
	c := NewLRU[string, int](4, time.Minute)
	c.Set("a", 1, 10*time.Millisecond)

	_, ok := c.Get("a")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](3, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	// Touch "a" so "b" becomes the eviction victim.
	c.Get("a")
	c.Set("d", 4, 0)

	require.Equal(t, 3, c.Len())
	_, ok := c.Get("b")
	require.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		require.True(t, ok, "key %q evicted", k)
	}
}

func TestLRU_EvictOldestExpiry(t *testing.T) {
	c := NewLRU[string, int](8, time.Minute)
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	c.EvictOldestExpiry()

	_, ok := c.Get("short")
	require.False(t, ok)
	_, ok = c.Get("long")
	require.True(t, ok)
}

func TestLRU_CleanupExpired(t *testing.T) {
	c := NewLRU[string, int](8, time.Minute)
	c.Set("stale1", 1, time.Nanosecond)
	c.Set("stale2", 2, time.Nanosecond)
	c.Set("live", 3, time.Hour)
	time.Sleep(time.Millisecond)

	require.Equal(t, 2, c.CleanupExpired())
	require.Equal(t, 1, c.Len())
}

func TestLRU_DeleteAndPurge(t *testing.T) {
	c := NewLRU[string, int](8, time.Minute)
	c.Set("a", 1, 0)
	c.Delete("a")
	c.Delete("missing") // no-op
	_, ok := c.Get("a")
	require.False(t, ok)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Purge()
	require.Equal(t, 0, c.Len())
}

func TestLRU_DefaultsOnBadConfig(t *testing.T) {
	c := NewLRU[string, int](0, 0)
	require.Equal(t, 1000, c.Capacity())
	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	require.True(t, ok)
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU[int, int](128, time.Minute)
	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 500; i++ {
				c.Set(i%64, g*1000+i, 0)
				c.Get(i % 64)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	require.LessOrEqual(t, c.Len(), 128)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(16, time.Minute)

	_, ok := s.Get(ctx, "k")
	require.False(t, ok)

	s.Set(ctx, "k", []byte("v"), 0)
	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), got)
	require.Equal(t, 1, s.Len())

	s.Delete(ctx, "k")
	_, ok = s.Get(ctx, "k")
	require.False(t, ok)
}
