package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces embedding keys in a shared Redis database.
const redisKeyPrefix = "regqa:emb:"

// RedisCache stores embeddings in Redis so several processes share them.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects lazily to the configured Redis server.
func NewRedisCache(cfg config.CacheConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 2 * time.Second,
	})
	return &RedisCache{client: client, ttl: cfg.TTL}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	b, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, ok := decodeFloats(b)
	return vec, ok, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	return c.client.Set(ctx, redisKeyPrefix+key, encodeFloats(vec), c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encodeFloats(vec []float32) []byte {
	b := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func decodeFloats(b []byte) ([]float32, bool) {
	if len(b)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, true
}
