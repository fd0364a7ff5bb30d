package vector

import (
	"context"
	"sort"
	"sync"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
)

// Index is an in-memory brute-force vector index. Appends are published
// under the write lock only after every new entry is fully built, so
// concurrent searches see either the old or the new set of entries.
type Index struct {
	dimension  int
	providerID string
	metric     Metric

	mu      sync.RWMutex
	entries []*Entry
	norms   []float64
	nextSeq uint64
	version uint64
}

// New creates an empty index.
func New(dimension int, providerID string, metric Metric) (*Index, error) {
	if dimension <= 0 {
		return nil, errs.Configuration("vector.new", "dimension", "must be positive, got %d", dimension)
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if metric == "" {
		metric = MetricCosine
	}
	return &Index{
		dimension:  dimension,
		providerID: providerID,
		metric:     metric,
		nextSeq:    1,
	}, nil
}

// Restore rebuilds an index from persisted entries. Entries must be in
// insertion order; nextSeq continues the ID sequence for later appends.
func Restore(dimension int, providerID string, metric Metric, entries []*Entry, nextSeq uint64) (*Index, error) {
	idx, err := New(dimension, providerID, metric)
	if err != nil {
		return nil, err
	}
	var last uint64
	for _, e := range entries {
		if len(e.Vector) != dimension {
			return nil, errs.DimensionMismatch("vector.restore", dimension, len(e.Vector))
		}
		if e.Seq <= last {
			return nil, errs.Configuration("vector.restore", "seq", "entry %q out of order", e.ID)
		}
		last = e.Seq
		idx.entries = append(idx.entries, e)
		idx.norms = append(idx.norms, L2Norm(e.Vector))
	}
	idx.nextSeq = max(nextSeq, last+1)
	return idx, nil
}

// Append adds one entry per chunk. The whole batch is validated before any
// entry becomes visible; on error the index is unchanged. It returns the
// assigned IDs.
func (x *Index) Append(ctx context.Context, chunks []models.Chunk, vectors [][]float32) ([]string, error) {
	const op = "vector.append"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(chunks) != len(vectors) {
		return nil, errs.Configuration(op, "embeddings", "got %d chunks and %d embeddings", len(chunks), len(vectors))
	}
	built := make([]*Entry, len(chunks))
	norms := make([]float64, len(chunks))
	for i := range chunks {
		if len(vectors[i]) != x.dimension {
			return nil, errs.DimensionMismatch(op, x.dimension, len(vectors[i]))
		}
		if !finite(vectors[i]) {
			return nil, errs.Configuration(op, "embeddings", "vector %d has non-finite components", i)
		}
		meta, err := models.CanonicalMetadata(chunks[i].Metadata)
		if err != nil {
			return nil, errs.Configuration(op, "metadata", "chunk %d: %v", i, err)
		}
		vec := make([]float32, x.dimension)
		copy(vec, vectors[i])
		built[i] = &Entry{Vector: vec, Chunk: models.Chunk{Text: chunks[i].Text, Metadata: meta}}
		norms[i] = L2Norm(vec)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	ids := make([]string, len(built))
	for i, e := range built {
		e.Seq = x.nextSeq
		e.ID = FormatID(e.Seq)
		x.nextSeq++
		ids[i] = e.ID
	}
	x.entries = append(x.entries, built...)
	x.norms = append(x.norms, norms...)
	if len(built) > 0 {
		x.version++
	}
	return ids, nil
}

// Search returns the min(k, Size()) entries most similar to query, best
// first. Equal scores keep insertion order.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	const op = "vector.search"
	if k <= 0 {
		return nil, errs.Configuration(op, "k", "must be positive, got %d", k)
	}
	if len(query) != x.dimension {
		return nil, errs.DimensionMismatch(op, x.dimension, len(query))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	n := len(x.entries)
	if n == 0 {
		return []models.SearchResult{}, nil
	}
	qNorm := L2Norm(query)
	scores := make([]float64, n)
	order := make([]int, n)
	for i, e := range x.entries {
		order[i] = i
		switch x.metric {
		case MetricL2:
			scores[i] = 1 / (1 + Euclidean(query, e.Vector))
		default:
			scores[i] = Cosine(query, e.Vector, qNorm, x.norms[i])
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if k > n {
		k = n
	}
	results := make([]models.SearchResult, k)
	for i := 0; i < k; i++ {
		e := x.entries[order[i]]
		results[i] = models.SearchResult{ID: e.ID, Chunk: e.Chunk, Score: scores[order[i]]}
	}
	return results, nil
}

// Entries returns the entries in insertion order. The slice is a copy; the
// entries themselves are shared and must not be modified.
func (x *Index) Entries() []*Entry {
	return x.EntriesFrom(0)
}

// EntriesFrom returns the entries at positions >= from.
func (x *Index) EntriesFrom(from int) []*Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if from >= len(x.entries) {
		return nil
	}
	return append([]*Entry(nil), x.entries[from:]...)
}

// Get returns the entry with the given ID.
func (x *Index) Get(id string) (*Entry, bool) {
	seq, ok := ParseID(id)
	if !ok {
		return nil, false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	i := sort.Search(len(x.entries), func(i int) bool { return x.entries[i].Seq >= seq })
	if i < len(x.entries) && x.entries[i].Seq == seq {
		return x.entries[i], true
	}
	return nil, false
}

// Size returns the number of entries.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Dimension returns the vector length every entry has.
func (x *Index) Dimension() int { return x.dimension }

// ProviderID returns the identity of the embedding provider that produced the vectors.
func (x *Index) ProviderID() string { return x.providerID }

// Metric returns the ranking metric.
func (x *Index) Metric() Metric { return x.metric }

// Version increases on every non-empty append.
func (x *Index) Version() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.version
}

// NextSeq returns the sequence number the next appended entry will get.
func (x *Index) NextSeq() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.nextSeq
}

// Info returns the index-level metadata.
func (x *Index) Info() Info {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Info{
		Dimension:  x.dimension,
		Count:      len(x.entries),
		ProviderID: x.providerID,
		Metric:     x.metric,
		Version:    x.version,
	}
}

// Snapshot returns entries, the next sequence number and the index metadata
// as of a single point in time.
func (x *Index) Snapshot() ([]*Entry, uint64, Info) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	info := Info{
		Dimension:  x.dimension,
		Count:      len(x.entries),
		ProviderID: x.providerID,
		Metric:     x.metric,
		Version:    x.version,
	}
	return append([]*Entry(nil), x.entries...), x.nextSeq, info
}
