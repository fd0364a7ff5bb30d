// Package search answers queries against a vector index: semantic top-k,
// optionally fused with keyword relevance, behind a version-keyed cache.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/keyword"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/internal/vectorstore"
	"github.com/hyperjump/regqa/pkg/utils"
	"go.uber.org/zap"
)

// Keyword search tuning used by hybrid retrieval.
const (
	titleBoost  = 2.0
	phraseBoost = 1.5
)

type cacheKey struct {
	version uint64
	k       int
	hybrid  bool
	text    string
}

// Engine answers queries against one index. It is safe for concurrent use,
// including concurrently with appends to the index.
type Engine struct {
	store  *vectorstore.Store
	idx    *vectorstore.Index
	cfg    config.RetrievalConfig
	cache  *utils.LRU[cacheKey, []models.SearchResult]
	logger *zap.Logger

	kwOnce  sync.Once
	keyword *keyword.ChunkIndex
	kwErr   error
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine over idx. A QueryCacheSize of zero or less
// disables the result cache.
func NewEngine(store *vectorstore.Store, idx *vectorstore.Index, cfg config.RetrievalConfig, opts ...EngineOption) (*Engine, error) {
	const op = "search.new"
	if store == nil {
		return nil, errs.Configuration(op, "store", "vector store is required")
	}
	if idx == nil {
		return nil, errs.Configuration(op, "index", "no index; create or load one first")
	}
	if cfg.K <= 0 {
		return nil, errs.Configuration(op, "retrieval.k", "must be positive, got %d", cfg.K)
	}
	if cfg.KeywordWeight < 0 || cfg.SemanticWeight < 0 {
		return nil, errs.Configuration(op, "retrieval.keyword_weight", "fusion weights must not be negative")
	}
	e := &Engine{
		store:  store,
		idx:    idx,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	if cfg.QueryCacheSize > 0 {
		e.cache = utils.NewLRU[cacheKey, []models.SearchResult](cfg.QueryCacheSize)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Index returns the index the engine queries.
func (e *Engine) Index() *vectorstore.Index { return e.idx }

// DefaultK returns the configured number of results.
func (e *Engine) DefaultK() int { return e.cfg.K }

// Query embeds text and returns the k most similar chunks with their scores.
// Provider errors are returned unchanged.
func (e *Engine) Query(ctx context.Context, text string, k int) ([]models.SearchResult, error) {
	return e.run(ctx, text, k, false)
}

// HybridQuery fuses semantic similarity with max-normalized keyword scores
// using the configured weights.
func (e *Engine) HybridQuery(ctx context.Context, text string, k int) ([]models.SearchResult, error) {
	return e.run(ctx, text, k, true)
}

// AnswerableContext returns the chunks handed to answer generation, using
// hybrid retrieval when it is enabled in the configuration.
func (e *Engine) AnswerableContext(ctx context.Context, text string, k int) ([]models.SearchResult, error) {
	return e.run(ctx, text, k, e.cfg.Hybrid)
}

// Search serves a QueryRequest: it validates the request, applies the
// default k and times the query.
func (e *Engine) Search(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	if err := ProcessQuery(&req, e.cfg.K); err != nil {
		return nil, err
	}
	hybrid := req.Hybrid || e.cfg.Hybrid
	results, err := e.run(ctx, req.Query, req.K, hybrid)
	if err != nil {
		return nil, err
	}
	return &models.QueryResponse{
		Query:     req.Query,
		K:         req.K,
		Hybrid:    hybrid,
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

func (e *Engine) run(ctx context.Context, text string, k int, hybrid bool) ([]models.SearchResult, error) {
	const op = "search.query"
	if k <= 0 {
		return nil, errs.Configuration(op, "k", "must be positive, got %d", k)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errs.EmptyInput(op, "query text is empty")
	}

	key := cacheKey{version: e.idx.Version(), k: k, hybrid: hybrid, text: text}
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			e.logger.Debug("query cache hit", zap.Int("k", k), zap.Bool("hybrid", hybrid))
			return append([]models.SearchResult(nil), cached...), nil
		}
	}

	var (
		results []models.SearchResult
		err     error
	)
	if hybrid {
		results, err = e.hybrid(ctx, text, k)
	} else {
		results, err = e.store.SearchWithScore(ctx, e.idx, text, k)
	}
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, append([]models.SearchResult(nil), results...))
	}
	e.logger.Debug("query answered",
		zap.Int("k", k),
		zap.Bool("hybrid", hybrid),
		zap.Int("count", len(results)))
	return results, nil
}

func (e *Engine) hybrid(ctx context.Context, text string, k int) ([]models.SearchResult, error) {
	candidates := max(e.cfg.CandidateK, k)
	semantic, err := e.store.SearchWithScore(ctx, e.idx, text, candidates)
	if err != nil {
		return nil, err
	}
	kw, err := e.keywordIndex(ctx)
	if err != nil {
		return nil, err
	}
	hits, err := kw.Search(ctx, text, candidates, &keyword.SearchOptions{TitleBoost: titleBoost, PhraseBoost: phraseBoost})
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	chunks := make(map[string]models.Chunk, len(semantic))
	for _, r := range semantic {
		chunks[r.ID] = r.Chunk
	}
	fused := Fuse(NormalizeKeywordScores(hits), SemanticScores(semantic), e.cfg.KeywordWeight, e.cfg.SemanticWeight)
	out := make([]models.SearchResult, 0, min(k, len(fused)))
	for _, f := range fused {
		if len(out) == k {
			break
		}
		chunk, ok := chunks[f.ID]
		if !ok {
			entry, found := e.idx.Entry(f.ID)
			if !found {
				continue
			}
			chunk = entry.Chunk
		}
		out = append(out, models.SearchResult{
			ID:            f.ID,
			Chunk:         chunk,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
		})
	}
	return out, nil
}

// keywordIndex builds the keyword index on first use and brings it up to
// date with entries appended since.
func (e *Engine) keywordIndex(ctx context.Context) (*keyword.ChunkIndex, error) {
	e.kwOnce.Do(func() {
		e.keyword, e.kwErr = keyword.NewChunkIndex()
	})
	if e.kwErr != nil {
		return nil, e.kwErr
	}
	n, err := e.keyword.Sync(ctx, e.idx)
	if err != nil {
		return nil, fmt.Errorf("keyword sync failed: %w", err)
	}
	if n > 0 {
		e.logger.Debug("keyword index synced", zap.Int("count", n), zap.Int("size", e.keyword.Indexed()))
	}
	return e.keyword, nil
}

// Close releases the keyword index, if one was built.
func (e *Engine) Close() error {
	if e.keyword != nil {
		return e.keyword.Close()
	}
	return nil
}
