package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineCache never dials; every call under test fails validation first.
func offlineCache(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheWithClient(client)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "lock:mentor:prog-1:m-9", MentorLockKey("prog-1", "m-9"))
	assert.Equal(t, "lock:expire-matches", LockKey("expire-matches"))
	assert.Equal(t, "stats:prog-1", StatsKey("prog-1"))
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())

	opts := cfg.options()
	assert.Equal(t, cfg.Addr(), opts.Addr)
	assert.Equal(t, cfg.PoolSize, opts.PoolSize)
}

func TestCacheValidation(t *testing.T) {
	c := offlineCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Set(ctx, "k", make(chan int), time.Minute), ErrCacheSerialization)

	var out int
	assert.ErrorIs(t, c.Get(ctx, "", &out), ErrCacheKeyEmpty)

	_, err := c.SetNX(ctx, "", "v", time.Second)
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
	_, err = c.SetNX(ctx, "k", "v", 0)
	assert.ErrorIs(t, err, ErrCacheInvalidTTL)

	require.NoError(t, c.Delete(ctx))
}

func TestLockerDefaults(t *testing.T) {
	l := NewLocker(offlineCache(t), LockerConfig{})
	assert.Equal(t, DefaultLockerConfig(), l.config)

	l = NewLocker(offlineCache(t), LockerConfig{TTL: time.Minute})
	assert.Equal(t, time.Minute, l.config.TTL)
	assert.Equal(t, DefaultLockerConfig().MaxWait, l.config.MaxWait)
}

func TestStatsCacheRejectsNil(t *testing.T) {
	s := NewStatsCache(offlineCache(t), 0)
	assert.Equal(t, TTLStatsCache, s.ttl)
	assert.ErrorIs(t, s.SetStats(context.Background(), nil), ErrCacheNilValue)
}
