package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis answers the handful of commands RedisStore issues from an in-memory map.
type fakeRedis struct {
	redis.Cmdable

	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	store := NewRedisStore(client, "school")

	_, ok, err := store.Get(ctx, "sms_users")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "sms_users", `[{"id":"S1"}]`))
	assert.Equal(t, `[{"id":"S1"}]`, client.values["school:sms_users"])
	_, raw := client.values["sms_users"]
	assert.False(t, raw)

	v, ok, err := store.Get(ctx, "sms_users")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"S1"}]`, v)

	other := NewRedisStore(client, "")
	_, ok, err = other.Get(ctx, "sms_users")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, other.Set(ctx, "sms_users", "[]"))
	assert.Equal(t, "[]", client.values["sms:sms_users"])

	require.NoError(t, store.Delete(ctx, "sms_users"))
	_, ok, err = store.Get(ctx, "sms_users")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "[]", client.values["sms:sms_users"])

	require.NoError(t, store.Delete(ctx, "never-set"))
}

func TestRedisStoreWrapsClientErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	store := NewRedisStore(client, "school")

	_, _, err := store.Get(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.err)
	assert.Contains(t, err.Error(), "redis get k")

	assert.ErrorIs(t, store.Set(ctx, "k", "v"), client.err)
	assert.ErrorIs(t, store.Delete(ctx, "k"), client.err)
}
