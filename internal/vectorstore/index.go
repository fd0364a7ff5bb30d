package vectorstore

import (
	"sync"
	"time"

	"github.com/hyperjump/regqa/internal/vector"
)

// Index is a vector index created or loaded by a Store. Searches may run
// concurrently with each other and with Add; appends are atomic.
type Index struct {
	vectors   *vector.Index
	id        string
	createdAt time.Time

	// persistMu orders snapshots of this index so a later Persist never
	// writes an older state over a newer one.
	persistMu sync.Mutex
}

// ID returns the index identifier recorded in its manifest.
func (i *Index) ID() string { return i.id }

// CreatedAt returns when the index was first created.
func (i *Index) CreatedAt() time.Time { return i.createdAt }

// Info returns the index-level metadata: dimension, count, provider and metric.
func (i *Index) Info() vector.Info { return i.vectors.Info() }

// Size returns the number of entries.
func (i *Index) Size() int { return i.vectors.Size() }

// Version increases with every append. Caches keyed by it are invalidated
// by any mutation.
func (i *Index) Version() uint64 { return i.vectors.Version() }

// EntriesFrom returns the entries at positions >= from, in insertion order.
func (i *Index) EntriesFrom(from int) []*vector.Entry { return i.vectors.EntriesFrom(from) }

// Entry returns the entry with the given ID.
func (i *Index) Entry(id string) (*vector.Entry, bool) { return i.vectors.Get(id) }
