// Package vectorstore creates, grows, persists, loads and searches vector
// indexes for one embedding provider and storage backend.
package vectorstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/regqa/internal/embedding"
	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/internal/storage"
	"github.com/hyperjump/regqa/internal/vector"
	"go.uber.org/zap"
)

// Store binds an embedding provider, a similarity metric and a snapshot
// backend. Indexes it loads must match the provider's id and dimension.
type Store struct {
	backend  storage.Backend
	provider embedding.Provider
	metric   vector.Metric
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetric sets the similarity metric for new indexes. Loaded indexes must
// have been built with the same metric.
func WithMetric(m vector.Metric) Option {
	return func(s *Store) { s.metric = m }
}

// New returns a store. The backend and provider are required.
func New(backend storage.Backend, provider embedding.Provider, opts ...Option) (*Store, error) {
	const op = "vectorstore.new"
	if backend == nil {
		return nil, errs.Configuration(op, "backend", "storage backend is required")
	}
	if provider == nil {
		return nil, errs.Configuration(op, "provider", "embedding provider is required")
	}
	s := &Store{
		backend:  backend,
		provider: provider,
		metric:   vector.MetricCosine,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	m, err := vector.ParseMetric(string(s.metric))
	if err != nil {
		return nil, err
	}
	s.metric = m
	return s, nil
}

// Provider returns the store's embedding provider.
func (s *Store) Provider() embedding.Provider { return s.provider }

// Create builds a fresh in-memory index from chunks and their embeddings.
// It does not persist. Empty input is rejected; use Bootstrap for an
// intentionally empty index.
func (s *Store) Create(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (*Index, error) {
	const op = "vectorstore.create"
	if len(chunks) != len(vectors) {
		return nil, errs.Configuration(op, "embeddings", "got %d chunks and %d embeddings", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil, errs.EmptyInput(op, "no chunks to index")
	}
	idx, err := s.Bootstrap()
	if err != nil {
		return nil, err
	}
	if _, err := idx.vectors.Append(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	s.logger.Info("index created",
		zap.String("index_id", idx.id),
		zap.Int("count", len(chunks)),
		zap.String("provider", s.provider.ID()))
	return idx, nil
}

// Bootstrap returns an empty index that can be grown with Add.
func (s *Store) Bootstrap() (*Index, error) {
	vec, err := vector.New(s.provider.Dimensions(), s.provider.ID(), s.metric)
	if err != nil {
		return nil, err
	}
	return &Index{vectors: vec, id: uuid.NewString(), createdAt: s.now().UTC()}, nil
}

// Add appends chunks and their embeddings to idx and returns it. The whole
// batch becomes visible to searches at once, or not at all on error.
func (s *Store) Add(ctx context.Context, idx *Index, chunks []models.Chunk, vectors [][]float32) (*Index, error) {
	const op = "vectorstore.add"
	if idx == nil {
		return nil, errs.Configuration(op, "index", "no index; create or load one first")
	}
	if len(chunks) == 0 && len(vectors) == 0 {
		return idx, nil
	}
	ids, err := idx.vectors.Append(ctx, chunks, vectors)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("entries added", zap.String("index_id", idx.id), zap.Int("count", len(ids)))
	return idx, nil
}

// Persist writes a snapshot of idx to location, replacing any previous
// snapshot atomically.
func (s *Store) Persist(ctx context.Context, idx *Index, location string) error {
	const op = "vectorstore.persist"
	if idx == nil {
		return errs.Configuration(op, "index", "no index to persist")
	}
	if location == "" {
		return errs.Configuration(op, "location", "storage location is required")
	}
	idx.persistMu.Lock()
	defer idx.persistMu.Unlock()

	entries, nextSeq, info := idx.vectors.Snapshot()
	snap := &storage.Snapshot{
		Manifest: storage.Manifest{
			FormatVersion: storage.FormatVersion,
			IndexID:       idx.id,
			Dimension:     info.Dimension,
			ProviderID:    info.ProviderID,
			Metric:        string(info.Metric),
			EntryCount:    len(entries),
			NextSeq:       nextSeq,
			CreatedAt:     idx.createdAt,
			UpdatedAt:     s.now().UTC(),
		},
		Entries: entries,
	}
	if err := s.backend.Save(ctx, location, snap); err != nil {
		return err
	}
	s.logger.Info("index persisted",
		zap.String("index_id", idx.id),
		zap.String("path", location),
		zap.String("backend", s.backend.Name()),
		zap.Int("count", len(entries)))
	return nil
}

// Load reads the snapshot at location. The manifest is checked against the
// store's provider and metric before any entry is read.
func (s *Store) Load(ctx context.Context, location string) (*Index, error) {
	const op = "vectorstore.load"
	m, err := s.backend.ReadManifest(ctx, location)
	if err != nil {
		return nil, err
	}
	if err := s.compatible(op, location, m); err != nil {
		return nil, err
	}
	snap, err := s.backend.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	if err := s.compatible(op, location, &snap.Manifest); err != nil {
		return nil, err
	}
	vec, err := vector.Restore(snap.Manifest.Dimension, snap.Manifest.ProviderID,
		vector.Metric(snap.Manifest.Metric), snap.Entries, snap.Manifest.NextSeq)
	if err != nil {
		return nil, errs.Storage(op, location, err)
	}
	id := snap.Manifest.IndexID
	if id == "" {
		id = uuid.NewString()
	}
	s.logger.Info("index loaded",
		zap.String("index_id", id),
		zap.String("path", location),
		zap.Int("count", vec.Size()))
	return &Index{vectors: vec, id: id, createdAt: snap.Manifest.CreatedAt}, nil
}

// Info reads only the manifest at location.
func (s *Store) Info(ctx context.Context, location string) (*storage.Manifest, error) {
	return s.backend.ReadManifest(ctx, location)
}

func (s *Store) compatible(op, location string, m *storage.Manifest) error {
	if m.Dimension != s.provider.Dimensions() {
		return errs.Incompatible(op, location, "index dimension %d does not match provider %s dimension %d",
			m.Dimension, s.provider.ID(), s.provider.Dimensions())
	}
	if m.ProviderID != s.provider.ID() {
		return errs.Incompatible(op, location, "index was built with provider %q, active provider is %q",
			m.ProviderID, s.provider.ID())
	}
	metric, err := vector.ParseMetric(m.Metric)
	if err != nil || metric != s.metric {
		return errs.Incompatible(op, location, "index metric %q does not match configured metric %q", m.Metric, s.metric)
	}
	return nil
}

// Search returns the min(k, size) entries nearest to query, best first,
// with equal scores in insertion order. Each result carries the metric's
// similarity score (cosine similarity by default); scores never increase
// down the list.
func (s *Store) Search(ctx context.Context, idx *Index, query []float32, k int) ([]models.SearchResult, error) {
	const op = "vectorstore.search"
	if idx == nil {
		return nil, errs.Configuration(op, "index", "no index to search")
	}
	if k <= 0 {
		return nil, errs.Configuration(op, "k", "must be positive, got %d", k)
	}
	return idx.vectors.Search(ctx, query, k)
}

// SearchWithScore is the text entry point over Search: it embeds queryText
// with the store's provider and returns Search's scored results for that
// vector. Retrievers and the query engine go through it. Arguments are
// checked before the provider is called, and provider failures are
// returned unchanged.
func (s *Store) SearchWithScore(ctx context.Context, idx *Index, queryText string, k int) ([]models.SearchResult, error) {
	const op = "vectorstore.search"
	if idx == nil {
		return nil, errs.Configuration(op, "index", "no index to search")
	}
	if k <= 0 {
		return nil, errs.Configuration(op, "k", "must be positive, got %d", k)
	}
	query, err := s.provider.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, idx, query, k)
}

// AsRetriever returns a view of idx that answers text queries with chunks.
func (s *Store) AsRetriever(idx *Index, defaultK int) (*Retriever, error) {
	if idx == nil {
		return nil, errs.Configuration("vectorstore.as_retriever", "index", "no index to retrieve from")
	}
	if defaultK <= 0 {
		return nil, errs.Configuration("vectorstore.as_retriever", "k", "must be positive, got %d", defaultK)
	}
	return &Retriever{store: s, index: idx, k: defaultK}, nil
}

// Retriever answers text queries with the top-k chunks of one index.
type Retriever struct {
	store *Store
	index *Index
	k     int
}

// K returns the number of chunks Retrieve returns at most.
func (r *Retriever) K() int { return r.k }

// Retrieve embeds queryText and returns the k most similar chunks.
func (r *Retriever) Retrieve(ctx context.Context, queryText string) ([]models.Chunk, error) {
	results, err := r.store.SearchWithScore(ctx, r.index, queryText, r.k)
	if err != nil {
		return nil, err
	}
	return models.Chunks(results), nil
}
