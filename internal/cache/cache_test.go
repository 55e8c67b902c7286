// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(0)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCache_CopiesValue(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	buf := []byte("abc")
	c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'x'

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache(0)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Second)
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	assert.Equal(t, 1, c.deleteExpired())
	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Zero(t, c.Stats().CurrentSize)
}

func TestMemoryCache_NonPositiveTTLIsIgnored(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set(context.Background(), "k", []byte("v"), 0)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Delete(ctx, "k")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_JanitorStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewMemoryCache(5 * time.Millisecond)
	c.Set(context.Background(), "k", []byte("v"), time.Millisecond)

	require.Eventually(t, func() bool {
		return c.Stats().CurrentSize == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(time.Millisecond)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Set(ctx, "k", []byte("v"), time.Millisecond)
				c.Get(ctx, "k")
				c.Stats()
			}
		}()
	}
	wg.Wait()
}

func TestNoOpCache(t *testing.T) {
	var c Cache = NoOpCache{}
	c.Set(context.Background(), "k", []byte("v"), time.Minute)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Equal(t, Stats{}, c.Stats())
	assert.NoError(t, c.Close())
}
