// Package storage persists vector index snapshots to local files.
package storage

import (
	"context"
	"sort"
	"time"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/vector"
	"go.uber.org/zap"
)

// FormatVersion is the snapshot layout version written by this package.
// Snapshots with any other version are rejected on load.
const FormatVersion = 1

// maxPrealloc caps slice preallocation from a manifest's entry_count.
const maxPrealloc = 1 << 16

// Manifest describes a snapshot. It is enough to decide whether the snapshot
// can be used with an embedding configuration without reading the entries.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	IndexID       string    `json:"index_id"`
	Dimension     int       `json:"dimension"`
	ProviderID    string    `json:"provider_id"`
	Metric        string    `json:"metric"`
	EntryCount    int       `json:"entry_count"`
	NextSeq       uint64    `json:"next_seq"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	// Set by the file backend.
	DataFile string `json:"data_file,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// Snapshot is a manifest plus the entries in insertion order.
type Snapshot struct {
	Manifest Manifest
	Entries  []*vector.Entry
}

// Backend writes and reads snapshots at a location. Save must replace any
// existing snapshot atomically: a concurrent or later Load sees either the old
// or the new snapshot, and a failed Save leaves the old one in place.
type Backend interface {
	Name() string
	Save(ctx context.Context, location string, snap *Snapshot) error
	Load(ctx context.Context, location string) (*Snapshot, error)
	ReadManifest(ctx context.Context, location string) (*Manifest, error)
}

// Factory creates a backend.
type Factory func(logger *zap.Logger) Backend

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Registry maps backend names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in backends.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(BackendFile, func(l *zap.Logger) Backend { return NewFileBackend(l) })
	r.Register(BackendSQLite, func(l *zap.Logger) Backend { return NewSQLiteBackend(l) })
	return r
}

// Register adds or replaces a backend factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New creates the named backend. Unknown names are a configuration error.
func (r *Registry) New(name string, logger *zap.Logger) (Backend, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, errs.Configuration("storage.new", "backend", "unknown storage backend %q (supported: %v)", name, r.Names())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return f(logger), nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func checkVersion(op, location string, m *Manifest) error {
	if m.FormatVersion != FormatVersion {
		return errs.Incompatible(op, location, "unsupported format_version %d (expected %d)", m.FormatVersion, FormatVersion)
	}
	if m.Dimension <= 0 {
		return errs.Storagef(op, location, "manifest dimension %d is invalid", m.Dimension)
	}
	if m.EntryCount < 0 {
		return errs.Storagef(op, location, "manifest entry_count %d is invalid", m.EntryCount)
	}
	return nil
}
