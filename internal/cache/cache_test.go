package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/review-sms/internal/cache"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestClaimStore_AcquireIsExclusive(t *testing.T) {
	_, client := newRedis(t)
	store := cache.NewClaimStore(client, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	first, ok, err := store.Acquire(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, first.Token)

	_, ok, err = store.Acquire(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, first))

	second, ok, err := store.Acquire(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestClaimStore_ReleaseKeepsForeignClaim(t *testing.T) {
	mr, client := newRedis(t)
	store := cache.NewClaimStore(client, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	stale, ok, err := store.Acquire(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	current, ok, err := store.Acquire(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Release(ctx, stale))

	val, err := mr.Get("sweep:claim:" + id.String())
	require.NoError(t, err)
	assert.Equal(t, current.Token, val)
}

func TestClaimStore_ClaimExpires(t *testing.T) {
	mr, client := newRedis(t)
	store := cache.NewClaimStore(client, 30*time.Second)
	id := uuid.New()

	_, ok, err := store.Acquire(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists("sweep:claim:"+id.String()))
}

func TestClaimStore_RedisDown(t *testing.T) {
	mr, client := newRedis(t)
	store := cache.NewClaimStore(client, time.Minute)
	mr.Close()

	_, ok, err := store.Acquire(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestMessageIndex(t *testing.T) {
	mr, client := newRedis(t)
	index := cache.NewMessageIndex(client, time.Hour)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, index.Put(ctx, "SM123", id))

	got, ok, err := index.Get(ctx, "SM123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok, err = index.Get(ctx, "SMmissing")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Hour)
	_, ok, err = index.Get(ctx, "SM123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessageIndex_CorruptEntryIsMiss(t *testing.T) {
	mr, client := newRedis(t)
	index := cache.NewMessageIndex(client, time.Hour)
	require.NoError(t, mr.Set("message:SMbad", "not-a-uuid"))

	_, ok, err := index.Get(context.Background(), "SMbad")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("message:SMbad"))
}
