package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/embedding"
	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/extract"
	"github.com/hyperjump/regqa/internal/indexer"
	"github.com/hyperjump/regqa/internal/search"
	"github.com/hyperjump/regqa/internal/storage"
	"github.com/hyperjump/regqa/internal/vector"
	"github.com/hyperjump/regqa/internal/vectorstore"
	"github.com/hyperjump/regqa/pkg/utils"
	"go.uber.org/zap"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	envFile    string
	debug      bool
}

// components is the pipeline wired from one configuration.
type components struct {
	cfg      *config.Config
	logger   *zap.Logger
	provider embedding.Provider
	store    *vectorstore.Store
	indexer  *indexer.Indexer
}

// loadConfig reads the .env file and then the config file.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func (o *globalOptions) initialize() (*components, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return initializeComponents(cfg)
}

func initializeComponents(cfg *config.Config) (*components, error) {
	logger, err := utils.NewLogger(cfg.Debug, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	provider, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	backend, err := storage.NewRegistry().New(cfg.Storage.Backend, logger)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	metric, err := vector.ParseMetric(cfg.Retrieval.Metric)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	store, err := vectorstore.New(backend, provider, vectorstore.WithLogger(logger), vectorstore.WithMetric(metric))
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	chunker, err := indexer.NewChunkerFromConfig(cfg.Chunking)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	loader := extract.NewLoader(cfg.Documents.Extensions,
		extract.WithRecursive(cfg.Documents.RecursiveOrDefault()),
		extract.WithLogger(logger))
	ix, err := indexer.NewIndexer(chunker, store, indexer.WithLogger(logger), indexer.WithLoader(loader))
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	logger.Debug("components initialized",
		zap.String("provider", provider.ID()),
		zap.String("backend", backend.Name()),
		zap.String("path", cfg.Storage.Location))
	return &components{cfg: cfg, logger: logger, provider: provider, store: store, indexer: ix}, nil
}

// Close releases the provider and flushes the logger.
func (c *components) Close() {
	if c.provider != nil {
		_ = c.provider.Close()
	}
	_ = c.logger.Sync()
}

// load reads the persisted index.
func (c *components) load(ctx context.Context) (*vectorstore.Index, error) {
	idx, err := c.store.Load(ctx, c.cfg.Storage.Location)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%w (run \"regqa index\" first)", err)
	}
	return idx, err
}

// loadOrBootstrap reads the persisted index, or starts an empty one when
// there is none yet.
func (c *components) loadOrBootstrap(ctx context.Context) (*vectorstore.Index, error) {
	idx, err := c.store.Load(ctx, c.cfg.Storage.Location)
	if errors.Is(err, errs.ErrNotFound) {
		c.logger.Info("no index found, starting empty", zap.String("path", c.cfg.Storage.Location))
		return c.store.Bootstrap()
	}
	return idx, err
}

func (c *components) engine(idx *vectorstore.Index) (*search.Engine, error) {
	return search.NewEngine(c.store, idx, c.cfg.Retrieval, search.WithLogger(c.logger))
}
