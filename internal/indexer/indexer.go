package indexer

import (
	"context"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/extract"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/internal/vectorstore"
	"go.uber.org/zap"
)

// Indexer turns documents into index entries: preprocess, chunk, embed in
// one ordered batch, then create or append.
type Indexer struct {
	chunker *Chunker
	store   *vectorstore.Store
	loader  *extract.Loader
	logger  *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for indexing events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(ix *Indexer) {
		if l != nil {
			ix.logger = l
		}
	}
}

// WithLoader sets the loader used by BuildFromPaths and AddFiles.
func WithLoader(l *extract.Loader) IndexerOption {
	return func(ix *Indexer) { ix.loader = l }
}

// NewIndexer creates an indexer. Without WithLoader, files are loaded with
// the default extensions.
func NewIndexer(chunker *Chunker, store *vectorstore.Store, opts ...IndexerOption) (*Indexer, error) {
	const op = "indexer.new"
	if chunker == nil {
		return nil, errs.Configuration(op, "chunker", "chunker is required")
	}
	if store == nil {
		return nil, errs.Configuration(op, "store", "vector store is required")
	}
	ix := &Indexer{
		chunker: chunker,
		store:   store,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.loader == nil {
		ix.loader = extract.NewLoader(nil, extract.WithLogger(ix.logger))
	}
	return ix, nil
}

// NewChunkerFromConfig builds the chunker described by cfg.
func NewChunkerFromConfig(cfg config.ChunkingConfig) (*Chunker, error) {
	var opts []ChunkerOption
	if cfg.Strategy != "" {
		opts = append(opts, WithStrategy(cfg.Strategy))
	}
	return NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.Separators, opts...)
}

// Store returns the vector store the indexer writes to.
func (ix *Indexer) Store() *vectorstore.Store { return ix.store }

// Loader returns the document loader.
func (ix *Indexer) Loader() *extract.Loader { return ix.loader }

// Split preprocesses and chunks every document, keeping input order.
func (ix *Indexer) Split(docs []models.RawDocument) []models.Chunk {
	var chunks []models.Chunk
	for _, d := range docs {
		d.Text = Preprocess(d.Text)
		chunks = append(chunks, ix.chunker.Split(d)...)
	}
	return chunks
}

// Build chunks and embeds docs and creates a new in-memory index from them.
// Documents that produce no chunks yield an EmptyInput error. Provider
// errors are returned unchanged.
func (ix *Indexer) Build(ctx context.Context, docs []models.RawDocument) (*vectorstore.Index, error) {
	chunks := ix.Split(docs)
	if len(chunks) == 0 {
		return nil, errs.EmptyInput("indexer.build", "documents produced no chunks")
	}
	vectors, err := ix.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	idx, err := ix.store.Create(ctx, chunks, vectors)
	if err != nil {
		return nil, err
	}
	ix.logger.Info("index built",
		zap.Int("documents", len(docs)),
		zap.Int("count", len(chunks)))
	return idx, nil
}

// AddDocuments chunks, embeds and appends docs to idx. It returns the number
// of chunks added; zero chunks is a no-op.
func (ix *Indexer) AddDocuments(ctx context.Context, idx *vectorstore.Index, docs []models.RawDocument) (int, error) {
	if idx == nil {
		return 0, errs.Configuration("indexer.add", "index", "no index; create or load one first")
	}
	chunks := ix.Split(docs)
	if len(chunks) == 0 {
		return 0, nil
	}
	vectors, err := ix.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}
	if _, err := ix.store.Add(ctx, idx, chunks, vectors); err != nil {
		return 0, err
	}
	ix.logger.Debug("documents added",
		zap.Int("documents", len(docs)),
		zap.Int("count", len(chunks)),
		zap.Int("size", idx.Size()))
	return len(chunks), nil
}

// BuildFromPaths loads files and folders and builds an index from them.
func (ix *Indexer) BuildFromPaths(ctx context.Context, paths ...string) (*vectorstore.Index, error) {
	docs, err := ix.loader.Load(ctx, paths...)
	if err != nil {
		return nil, err
	}
	return ix.Build(ctx, docs)
}

// AddFiles loads files and folders and appends them to idx.
func (ix *Indexer) AddFiles(ctx context.Context, idx *vectorstore.Index, paths ...string) (int, error) {
	docs, err := ix.loader.Load(ctx, paths...)
	if err != nil {
		return 0, err
	}
	return ix.AddDocuments(ctx, idx, docs)
}

func (ix *Indexer) embed(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return ix.store.Provider().EmbedBatch(ctx, texts)
}
