package redis

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
)

type memoryCmdable struct {
	data    map[string]string
	counter map[string]int64
	expires map[string]time.Duration
}

func newMemory() *memoryCmdable {
	return &memoryCmdable{
		data:    map[string]string{},
		counter: map[string]int64{},
		expires: map[string]time.Duration{},
	}
}

func (m *memoryCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memoryCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := m.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (m *memoryCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	m.counter[key]++
	return redis.NewIntResult(m.counter[key], nil)
}

func (m *memoryCmdable) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mem := newMemory()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &Client{store: mem, now: fixedClock(start)}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "login", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "hit %d", i+1)
		assert.EqualValues(t, i+1, count)
	}
	require.Len(t, mem.expires, 1)

	client.now = fixedClock(start.Add(time.Minute))
	allowed, count, err := client.FixedWindowAllow(ctx, "login", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.EqualValues(t, 1, count)
	assert.Len(t, mem.expires, 2)

	for key := range mem.expires {
		assert.True(t, strings.HasPrefix(key, "sf:rate_limit:login:"), key)
	}

	_, _, err = client.FixedWindowAllow(ctx, "login", 2, 0)
	assert.Error(t, err)
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMemory()}

	key := client.LockKey("import", "shop-1")
	ok, err := client.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Unlock(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, Nil)
}

func TestKeyspace(t *testing.T) {
	var def Keyspace
	assert.Equal(t, "sf:idempotency:scope:id", def.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sf:rate_limit:scope", def.RateLimitKey("scope"))
	assert.Equal(t, "sf:session:access:jti", def.AccessSessionKey("jti"))
	assert.Equal(t, "sf:lock:import", def.LockKey("import", ""))

	custom := Keyspace("staging")
	assert.Equal(t, "staging:lock:import:shop", custom.LockKey("import", " shop "))
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	assert.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, client.Close())

	_, err := (&Client{}).Get(context.Background(), "k")
	assert.ErrorIs(t, err, errNotInitialized)
}

func TestOptions(t *testing.T) {
	_, err := options(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := options(config.RedisConfig{URL: "redis://localhost:6380/3", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = options(config.RedisConfig{Address: "cache:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}
