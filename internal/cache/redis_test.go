package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, ""), mr
}

func TestRedisPutGetEvict(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	_, ok, err := c.Get(ctx, ResolutionKey("ABCD1234"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, ResolutionKey("ABCD1234"), []byte(`{"t":1}`), time.Hour))
	assert.True(t, mr.Exists(DefaultNamespace+"resolve:ABCD1234"))

	v, ok, err := c.Get(ctx, ResolutionKey("ABCD1234"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"t":1}`, string(v))

	require.NoError(t, c.Evict(ctx, ResolutionKey("ABCD1234")))
	_, ok, _ = c.Get(ctx, ResolutionKey("ABCD1234"))
	assert.False(t, ok)
}

func TestRedisTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	require.NoError(t, c.Put(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisEvictPrefix(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	for _, fp := range []string{"a", "b", "c"} {
		require.NoError(t, c.Put(ctx, ImageKey("ABCD1234", fp), []byte(fp), 0))
	}
	require.NoError(t, c.Put(ctx, ImageKey("WXYZ9876", "a"), []byte("keep"), 0))

	require.NoError(t, c.EvictPrefix(ctx, ImagePrefix("ABCD1234")))

	for _, fp := range []string{"a", "b", "c"} {
		_, ok, _ := c.Get(ctx, ImageKey("ABCD1234", fp))
		assert.False(t, ok, "image %s should be evicted", fp)
	}
	_, ok, _ := c.Get(ctx, ImageKey("WXYZ9876", "a"))
	assert.True(t, ok)
}

func TestRedisErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	mr.Close()

	_, _, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, c.Ping(ctx))
}
