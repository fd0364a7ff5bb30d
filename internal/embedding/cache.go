package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/hyperjump/regqa/pkg/utils"
	"go.uber.org/zap"
)

// VectorCache stores embeddings by key. Errors are treated as misses by the
// caching provider.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
	Close() error
}

// MemoryCache is an in-process LRU cache of embeddings.
type MemoryCache struct {
	lru *utils.LRU[string, []float32]
}

// NewMemoryCache creates a cache holding at most size embeddings.
func NewMemoryCache(size int) *MemoryCache {
	return &MemoryCache{lru: utils.NewLRU[string, []float32](size)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, vec []float32) error {
	c.lru.Set(key, vec)
	return nil
}

// Len returns the number of cached embeddings.
func (c *MemoryCache) Len() int { return c.lru.Len() }

func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}

// cacheKey scopes a text to the provider that embedded it.
func cacheKey(providerID, text string) string {
	sum := sha256.Sum256([]byte(providerID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// cached serves repeated texts from a VectorCache and sends only misses to
// the wrapped provider. Duplicate texts within one batch are embedded once.
type cached struct {
	Provider
	cache  VectorCache
	logger *zap.Logger
}

func (c *cached) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, c, text)
}

func (c *cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	pending := make(map[string][]int)
	var missTexts []string
	var missKeys []string

	for i, text := range texts {
		keys[i] = cacheKey(c.ID(), text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		if _, seen := pending[keys[i]]; !seen {
			missTexts = append(missTexts, text)
			missKeys = append(missKeys, keys[i])
		}
		pending[keys[i]] = append(pending[keys[i]], i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.Provider.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		key := missKeys[j]
		for n, i := range pending[key] {
			if n == 0 {
				out[i] = vec
			} else {
				out[i] = append([]float32(nil), vec...)
			}
		}
		if err := c.cache.Set(ctx, key, append([]float32(nil), vec...)); err != nil {
			c.logger.Warn("embedding cache write failed", zap.String("provider", c.ID()), zap.Error(err))
		}
	}
	return out, nil
}

func (c *cached) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.String("provider", c.ID()), zap.Error(err))
		return nil, false
	}
	if !ok || len(vec) != c.Dimensions() {
		return nil, false
	}
	return append([]float32(nil), vec...), true
}

func (c *cached) Close() error {
	cacheErr := c.cache.Close()
	if err := c.Provider.Close(); err != nil {
		return err
	}
	return cacheErr
}
