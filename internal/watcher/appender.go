package watcher

import (
	"context"
	"sync"

	"github.com/hyperjump/regqa/internal/indexer"
	"github.com/hyperjump/regqa/internal/vectorstore"
	"go.uber.org/zap"
)

// Appender adds files to a live index and re-persists the snapshot after
// each successful addition. Additions are serialized.
type Appender struct {
	indexer  *indexer.Indexer
	index    *vectorstore.Index
	location string
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewAppender returns an appender writing snapshots to location.
func NewAppender(ix *indexer.Indexer, idx *vectorstore.Index, location string, logger *zap.Logger) *Appender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Appender{indexer: ix, index: idx, location: location, logger: logger}
}

// Add loads path, appends its chunks and persists the index. It returns the
// number of chunks added.
func (a *Appender) Add(ctx context.Context, path string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	docs, err := a.indexer.Loader().LoadFile(ctx, path)
	if err != nil {
		return 0, err
	}
	n, err := a.indexer.AddDocuments(ctx, a.index, docs)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if err := a.indexer.Store().Persist(ctx, a.index, a.location); err != nil {
		return n, err
	}
	a.logger.Info("file added to index",
		zap.String("path", path),
		zap.Int("count", n),
		zap.Int("size", a.index.Size()))
	return n, nil
}

// Callback adapts Add to a watcher callback that logs failures.
func (a *Appender) Callback(ctx context.Context) func(path string) {
	return func(path string) {
		if _, err := a.Add(ctx, path); err != nil {
			a.logger.Warn("failed to add file", zap.String("path", path), zap.Error(err))
		}
	}
}
