package config

import "time"

// DefaultSeparators mirrors the chunker's regulatory separator hierarchy.
var DefaultSeparators = []string{"\n\n\n", "\n\n", "\n", ". ", ", ", " ", ""}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Location == "" {
		cfg.Storage.Location = "~/.regqa/index"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Dimensions == 0 && cfg.Embedding.Provider == "hash" {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.Cache.Type == "" {
		cfg.Embedding.Cache.Type = "memory"
	}
	if cfg.Embedding.Cache.Size == 0 {
		cfg.Embedding.Cache.Size = 10000
	}
	if cfg.Embedding.Cache.TTL == 0 {
		cfg.Embedding.Cache.TTL = 24 * time.Hour
	}
	// An unset overlap is a fifth of the chunk size (200 for the default 1000).
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = cfg.Chunking.ChunkSize / 5
	}
	if len(cfg.Chunking.Separators) == 0 {
		cfg.Chunking.Separators = append([]string(nil), DefaultSeparators...)
	}
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = "recursive"
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 4
	}
	if cfg.Retrieval.Metric == "" {
		cfg.Retrieval.Metric = "cosine"
	}
	if cfg.Retrieval.KeywordWeight == 0 && cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
		cfg.Retrieval.SemanticWeight = 0.7
	}
	if cfg.Retrieval.CandidateK == 0 {
		cfg.Retrieval.CandidateK = 50
	}
	if cfg.Retrieval.QueryCacheSize == 0 {
		cfg.Retrieval.QueryCacheSize = 256
	}
	if len(cfg.Documents.Extensions) == 0 {
		cfg.Documents.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".html", ".htm", ".xlsx", ".odt", ".rtf"}
	}
}
