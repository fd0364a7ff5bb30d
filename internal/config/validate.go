package config

import (
	"github.com/hyperjump/regqa/internal/errs"
)

// Validate checks values that would otherwise fail deep inside a component.
// Provider and backend names are checked by their registries.
func (c *Config) Validate() error {
	const op = "config.validate"
	switch {
	case c.Chunking.ChunkSize <= 0:
		return errs.Configuration(op, "chunking.chunk_size", "must be positive, got %d", c.Chunking.ChunkSize)
	case c.Chunking.ChunkOverlap < 0:
		return errs.Configuration(op, "chunking.chunk_overlap", "must not be negative, got %d", c.Chunking.ChunkOverlap)
	case c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize:
		return errs.Configuration(op, "chunking.chunk_overlap", "must be smaller than chunk_size (%d >= %d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	case c.Retrieval.K <= 0:
		return errs.Configuration(op, "retrieval.k", "must be positive, got %d", c.Retrieval.K)
	case c.Retrieval.Metric != "cosine" && c.Retrieval.Metric != "l2":
		return errs.Configuration(op, "retrieval.metric", "unknown metric %q (supported: cosine, l2)", c.Retrieval.Metric)
	case c.Retrieval.KeywordWeight < 0 || c.Retrieval.SemanticWeight < 0:
		return errs.Configuration(op, "retrieval.keyword_weight", "fusion weights must not be negative")
	case c.Embedding.BatchSize <= 0:
		return errs.Configuration(op, "embedding.batch_size", "must be positive, got %d", c.Embedding.BatchSize)
	case c.Embedding.Concurrency <= 0:
		return errs.Configuration(op, "embedding.concurrency", "must be positive, got %d", c.Embedding.Concurrency)
	case c.Embedding.Timeout < 0:
		return errs.Configuration(op, "embedding.timeout", "must not be negative")
	case c.Embedding.MaxRetries < 0:
		return errs.Configuration(op, "embedding.max_retries", "must not be negative")
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return errs.Configuration(op, "server.port", "out of range: %d", c.Server.Port)
	}
	switch c.Embedding.Cache.Type {
	case "none", "memory":
	case "redis":
		if c.Embedding.Cache.RedisAddr == "" {
			return errs.Configuration(op, "embedding.cache.redis_addr", "required for redis cache")
		}
	default:
		return errs.Configuration(op, "embedding.cache.type", "unknown cache type %q (supported: none, memory, redis)", c.Embedding.Cache.Type)
	}
	return nil
}
