package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCacheForTest(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return m, NewRedisCache(client, ttl)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "features:org1:production:", Key{Organization: "org1", Environment: "production"}.String())
	assert.Equal(t, "features:org1:dev:web", Key{Organization: "org1", Environment: "dev", Project: "web"}.String())
}

func TestKeysForDeduplicates(t *testing.T) {
	keys := KeysFor("org1", []string{"dev", "production"}, []string{"", ""})
	assert.Len(t, keys, 2)

	keys = KeysFor("org1", []string{"dev"}, []string{"web", ""})
	assert.ElementsMatch(t, []Key{
		{Organization: "org1", Environment: "dev", Project: "web"},
		{Organization: "org1", Environment: "dev", Project: ""},
	}, keys)
}

func TestMemoryCacheRoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	key := Key{Organization: "org1", Environment: "dev"}

	_, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, key, []byte(`{"a":{}}`)))
	b, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"a":{}}`, string(b))

	require.NoError(t, c.Invalidate(ctx, key))
	_, found, _ = c.Get(ctx, key)
	assert.False(t, found)
}

func TestRedisCacheRoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	m, c := newRedisCacheForTest(t, 30*time.Second)
	key := Key{Organization: "org1", Environment: "production", Project: "web"}

	_, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, key, []byte(`{}`)))
	assert.True(t, m.Exists(key.String()))
	assert.Equal(t, 30*time.Second, m.TTL(key.String()))

	b, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{}`, string(b))

	m.FastForward(31 * time.Second)
	_, found, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheInvalidateOnlyTouchesGivenKeys(t *testing.T) {
	ctx := context.Background()
	m, c := newRedisCacheForTest(t, time.Minute)
	dev := Key{Organization: "org1", Environment: "dev"}
	prod := Key{Organization: "org1", Environment: "production"}

	require.NoError(t, c.Set(ctx, dev, []byte(`1`)))
	require.NoError(t, c.Set(ctx, prod, []byte(`2`)))

	require.NoError(t, c.Invalidate(ctx, dev))
	assert.False(t, m.Exists(dev.String()))
	assert.True(t, m.Exists(prod.String()))

	require.NoError(t, c.Invalidate(ctx))
}
