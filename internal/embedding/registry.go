package embedding

import (
	"net/http"
	"sort"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/errs"
	"go.uber.org/zap"
)

// Provider names understood by NewRegistry.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"
)

// Factory builds a raw provider from configuration.
type Factory func(cfg config.EmbeddingConfig, logger *zap.Logger) (Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in providers.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(ProviderHash, func(cfg config.EmbeddingConfig, _ *zap.Logger) (Provider, error) {
		return NewHashProvider(cfg.Dimensions)
	})
	r.Register(ProviderOpenAI, func(cfg config.EmbeddingConfig, logger *zap.Logger) (Provider, error) {
		return NewOpenAIProvider(cfg, &http.Client{}, logger)
	})
	r.Register(ProviderOllama, func(cfg config.EmbeddingConfig, logger *zap.Logger) (Provider, error) {
		return NewOllamaProvider(cfg, &http.Client{}, logger)
	})
	r.Register(ProviderONNX, func(cfg config.EmbeddingConfig, _ *zap.Logger) (Provider, error) {
		return NewONNXProvider(cfg)
	})
	return r
}

// Register adds or replaces a provider factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open builds the configured provider without any wrappers. Unknown names
// fail here, at construction, rather than on first use.
func (r *Registry) Open(cfg config.EmbeddingConfig, logger *zap.Logger) (Provider, error) {
	f, ok := r.factories[cfg.Provider]
	if !ok {
		return nil, errs.Configuration("embedding.new", "embedding.provider",
			"unknown embedding provider %q (supported: %v)", cfg.Provider, r.Names())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return f(cfg, logger)
}

// New builds the configured provider and wraps it with validation, the
// configured cache and the batcher.
func (r *Registry) New(cfg config.EmbeddingConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw, err := r.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	var p Provider = validated{raw}

	switch cfg.Cache.Type {
	case "memory":
		p = &cached{Provider: p, cache: NewMemoryCache(cfg.Cache.Size), logger: logger}
	case "redis":
		p = &cached{Provider: p, cache: NewRedisCache(cfg.Cache), logger: logger}
	}

	size := cfg.BatchSize
	if size <= 0 {
		size = 64
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	logger.Debug("embedding provider ready",
		zap.String("provider", raw.ID()),
		zap.Int("dimensions", raw.Dimensions()),
		zap.String("cache", cfg.Cache.Type))
	return &batcher{Provider: p, size: size, concurrency: concurrency, timeout: cfg.Timeout}, nil
}

// New builds a provider from the built-in registry.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Provider, error) {
	return NewRegistry().New(cfg, logger)
}
