// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, newRedisCache(client, "", zerolog.Nop())
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "foryou", []byte(`{"data":[]}`), 5*time.Minute)

	got, ok := c.Get(ctx, "foryou")
	require.True(t, ok)
	assert.JSONEq(t, `{"data":[]}`, string(got))
	assert.True(t, mr.Exists("dramarelay:foryou"))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestRedisCache_Expiration(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestRedisCache_Delete(t *testing.T) {
	_, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Delete(ctx, "k")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_ServerDownDegradesToMiss(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), time.Minute)

	mr.Close()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, c.HealthCheck(ctx))
}

func TestNewRedisCache_ConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), RedisConfig{Addr: addr}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewRedisCache_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "test:"}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	c.Set(context.Background(), "k", []byte("v"), time.Minute)
	assert.True(t, mr.Exists("test:k"))
}
