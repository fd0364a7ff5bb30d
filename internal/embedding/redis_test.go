package embedding

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Set REGQA_TEST_REDIS_ADDR to run against a live Redis.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REGQA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("REGQA_TEST_REDIS_ADDR not set")
	}
	c := NewRedisCache(config.CacheConfig{RedisAddr: addr, TTL: time.Minute})
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	key := cacheKey("test/redis", time.Now().String())
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []float32{0.25, -1}))
	v, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.25, -1}, v)
}

func TestRedisCache_UnreachableServerIsAMiss(t *testing.T) {
	c := NewRedisCache(config.CacheConfig{RedisAddr: "127.0.0.1:1"})
	defer c.Close()
	f := &fakeProvider{dims: 2}
	p := &cached{Provider: f, cache: c, logger: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	vecs, err := p.EmbedBatch(ctx, []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, float32(3), vecs[0][0])
}
