package tokencache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, zap.NewNop()), mr
}

func TestTokenLifecycle(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	t.Run("store and get", func(t *testing.T) {
		require.NoError(t, cache.StoreToken(ctx, "access_token", "tok-123", DefaultTokenTTL))

		value, err := cache.GetToken(ctx, "access_token")
		require.NoError(t, err)
		assert.Equal(t, "tok-123", value)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, cache.StoreToken(ctx, "access_token", "tok-456", DefaultTokenTTL))

		value, err := cache.GetToken(ctx, "access_token")
		require.NoError(t, err)
		assert.Equal(t, "tok-456", value)
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, cache.StoreToken(ctx, "short", "v", time.Second))

		mr.FastForward(1100 * time.Millisecond)

		_, err := cache.GetToken(ctx, "short")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, cache.StoreToken(ctx, "refresh_token", "r1", DefaultTokenTTL))

		removed, err := cache.DeleteToken(ctx, "refresh_token")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = cache.DeleteToken(ctx, "refresh_token")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := cache.GetToken(ctx, "never-stored")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("zero ttl rejected", func(t *testing.T) {
		assert.ErrorIs(t, cache.StoreToken(ctx, "x", "v", 0), ErrInvalidTTL)
		assert.ErrorIs(t, cache.StoreToken(ctx, "x", "v", -time.Second), ErrInvalidTTL)
	})
}

func TestQueueFIFO(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	type request struct {
		ID string `json:"id"`
	}

	require.NoError(t, cache.Enqueue(ctx, "appointments", request{ID: "A"}))
	require.NoError(t, cache.Enqueue(ctx, "appointments", request{ID: "B"}))
	require.NoError(t, cache.Enqueue(ctx, "appointments", request{ID: "C"}))

	length, err := cache.QueueLength(ctx, "appointments")
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)

	for _, want := range []string{"A", "B", "C"} {
		var item request
		require.NoError(t, cache.Dequeue(ctx, "appointments", &item))
		assert.Equal(t, want, item.ID)
	}

	var item request
	assert.ErrorIs(t, cache.Dequeue(ctx, "appointments", &item), ErrNotFound)
}

func TestClearQueue(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Enqueue(ctx, "q", "one"))
	require.NoError(t, cache.Enqueue(ctx, "q", "two"))
	require.NoError(t, cache.ClearQueue(ctx, "q"))

	length, err := cache.QueueLength(ctx, "q")
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestNamespaceIsolation(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.StoreToken(ctx, "access_token", "A", 15*time.Minute))
	require.NoError(t, cache.SetWithExpiry(ctx, "other:token:access_token", "B", 15*time.Minute))

	fromTokens, err := cache.GetToken(ctx, "access_token")
	require.NoError(t, err)
	assert.Equal(t, "A", fromTokens)

	fromOther, err := cache.Get(ctx, "other:token:access_token")
	require.NoError(t, err)
	assert.Equal(t, "B", fromOther)

	// The raw keyspace must hold both without cross-contamination.
	assert.True(t, mr.Exists("ninsaude:token:access_token"))
	assert.True(t, mr.Exists("other:token:access_token"))
}

func TestHealthCheck(t *testing.T) {
	cache, mr := newTestCache(t)

	assert.True(t, cache.HealthCheck(context.Background()))

	mr.Close()
	assert.False(t, cache.HealthCheck(context.Background()))
}

func TestUninitializedClient(t *testing.T) {
	cache := New(nil, zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, cache.StoreToken(ctx, "t", "v", time.Minute), ErrNotInitialized)
	_, err := cache.GetToken(ctx, "t")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.False(t, cache.HealthCheck(ctx))
}
