package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/regqa/internal/errs"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REGQA_"

// ApplyEnv overrides cfg from environment variables read through lookup.
// OPENAI_API_KEY is used when no key is configured otherwise.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.boolean("DEBUG", &cfg.Debug)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("SERVER_HOST", &cfg.Server.Host)
	e.integer("SERVER_PORT", &cfg.Server.Port)
	e.str("STORAGE_BACKEND", &cfg.Storage.Backend)
	e.str("STORAGE_LOCATION", &cfg.Storage.Location)
	e.str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	e.str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	e.integer("EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)
	e.str("EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	e.str("EMBEDDING_MODEL_PATH", &cfg.Embedding.ModelPath)
	e.integer("EMBEDDING_BATCH_SIZE", &cfg.Embedding.BatchSize)
	e.integer("EMBEDDING_CONCURRENCY", &cfg.Embedding.Concurrency)
	e.duration("EMBEDDING_TIMEOUT", &cfg.Embedding.Timeout)
	e.integer("EMBEDDING_MAX_RETRIES", &cfg.Embedding.MaxRetries)
	e.str("OPENAI_API_KEY", &cfg.Embedding.APIKey)
	e.str("CACHE_TYPE", &cfg.Embedding.Cache.Type)
	e.str("REDIS_ADDR", &cfg.Embedding.Cache.RedisAddr)
	e.str("REDIS_PASSWORD", &cfg.Embedding.Cache.RedisPassword)
	e.integer("CHUNK_SIZE", &cfg.Chunking.ChunkSize)
	e.integer("CHUNK_OVERLAP", &cfg.Chunking.ChunkOverlap)
	e.str("CHUNK_STRATEGY", &cfg.Chunking.Strategy)
	e.integer("RETRIEVAL_K", &cfg.Retrieval.K)
	e.str("RETRIEVAL_METRIC", &cfg.Retrieval.Metric)
	e.boolean("RETRIEVAL_HYBRID", &cfg.Retrieval.Hybrid)
	if v, ok := e.get("DOCUMENTS_DIRS"); ok {
		cfg.Documents.Directories = splitList(v)
	}
	if cfg.Embedding.APIKey == "" {
		if v, ok := lookup("OPENAI_API_KEY"); ok {
			cfg.Embedding.APIKey = v
		}
	}
	return e.err
}

// envReader parses prefixed variables and keeps the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(name, format string, args ...any) {
	if e.err == nil {
		e.err = errs.Configuration("config.env", EnvPrefix+name, format, args...)
	}
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, "not an integer: %q", v)
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, "not a boolean: %q", v)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, "not a duration: %q", v)
			return
		}
		*dst = d
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
