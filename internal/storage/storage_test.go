package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(n int) *Snapshot {
	entries := make([]*vector.Entry, n)
	for i := range entries {
		seq := uint64(i + 1)
		entries[i] = &vector.Entry{
			ID:     vector.FormatID(seq),
			Seq:    seq,
			Vector: []float32{float32(i), 0.5, -1.25},
			Chunk: models.Chunk{
				Text:     "chunk text é " + vector.FormatID(seq),
				Metadata: map[string]any{"source": "nis2.pdf", "chunk_index": int64(i), "page": int64(2)},
			},
		}
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &Snapshot{
		Manifest: Manifest{
			FormatVersion: FormatVersion,
			IndexID:       "idx-1",
			Dimension:     3,
			ProviderID:    "hash/v1",
			Metric:        "cosine",
			NextSeq:       uint64(n + 1),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Entries: entries,
	}
}

func backends(t *testing.T) map[string]struct {
	backend  Backend
	location string
} {
	dir := t.TempDir()
	return map[string]struct {
		backend  Backend
		location string
	}{
		BackendFile:   {NewFileBackend(nil), filepath.Join(dir, "index")},
		BackendSQLite: {NewSQLiteBackend(nil), filepath.Join(dir, "db", "index.sqlite")},
	}
}

func TestBackends_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, tc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			snap := testSnapshot(5)
			require.NoError(t, tc.backend.Save(ctx, tc.location, snap))

			got, err := tc.backend.Load(ctx, tc.location)
			require.NoError(t, err)
			assert.Equal(t, 5, got.Manifest.EntryCount)
			assert.Equal(t, 3, got.Manifest.Dimension)
			assert.Equal(t, "hash/v1", got.Manifest.ProviderID)
			assert.Equal(t, uint64(6), got.Manifest.NextSeq)
			require.Len(t, got.Entries, 5)
			for i, e := range got.Entries {
				want := snap.Entries[i]
				assert.Equal(t, want.ID, e.ID)
				assert.Equal(t, want.Seq, e.Seq)
				assert.Equal(t, want.Vector, e.Vector)
				assert.Equal(t, want.Chunk, e.Chunk)
			}

			m, err := tc.backend.ReadManifest(ctx, tc.location)
			require.NoError(t, err)
			assert.Equal(t, "idx-1", m.IndexID)
		})
	}
}

func TestBackends_EmptySnapshot(t *testing.T) {
	ctx := context.Background()
	for name, tc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tc.backend.Save(ctx, tc.location, testSnapshot(0)))
			got, err := tc.backend.Load(ctx, tc.location)
			require.NoError(t, err)
			assert.Empty(t, got.Entries)
		})
	}
}

func TestBackends_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, tc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := tc.backend.Load(ctx, filepath.Join(t.TempDir(), "nonexistent", "path"))
			assert.ErrorIs(t, err, errs.ErrNotFound)
			_, err = tc.backend.ReadManifest(ctx, filepath.Join(t.TempDir(), "missing"))
			assert.ErrorIs(t, err, errs.ErrNotFound)
		})
	}
}

func TestBackends_RejectUnknownFormatVersion(t *testing.T) {
	ctx := context.Background()
	for name, tc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			snap := testSnapshot(1)
			snap.Manifest.FormatVersion = FormatVersion + 1
			require.NoError(t, tc.backend.Save(ctx, tc.location, snap))
			_, err := tc.backend.Load(ctx, tc.location)
			assert.ErrorIs(t, err, errs.ErrIncompatibleIndex)
		})
	}
}

func TestBackends_FailedSaveKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	for name, tc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tc.backend.Save(ctx, tc.location, testSnapshot(2)))

			bad := testSnapshot(3)
			bad.Entries[2].Chunk.Metadata["bad"] = make(chan int)
			err := tc.backend.Save(ctx, tc.location, bad)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrStorage)

			got, err := tc.backend.Load(ctx, tc.location)
			require.NoError(t, err)
			assert.Len(t, got.Entries, 2)

			// No temp files are left behind.
			matches, _ := filepath.Glob(filepath.Join(filepath.Dir(tc.location), ".*tmp*"))
			if name == BackendFile {
				more, _ := filepath.Glob(filepath.Join(tc.location, ".tmp-*"))
				matches = append(matches, more...)
			}
			assert.Empty(t, matches)
		})
	}
}

func TestFileBackend_OverwriteRemovesStaleData(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")
	b := NewFileBackend(nil)
	require.NoError(t, b.Save(ctx, dir, testSnapshot(2)))
	require.NoError(t, b.Save(ctx, dir, testSnapshot(4)))

	data, _ := filepath.Glob(filepath.Join(dir, dataPrefix+"*"+dataSuffix))
	assert.Len(t, data, 1)

	got, err := b.Load(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 4)
}

func TestFileBackend_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")
	b := NewFileBackend(nil)
	require.NoError(t, b.Save(ctx, dir, testSnapshot(3)))

	m, err := b.ReadManifest(ctx, dir)
	require.NoError(t, err)
	path := filepath.Join(dir, m.DataFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = b.Load(ctx, dir)
	assert.ErrorIs(t, err, errs.ErrStorage)
}

func TestFileBackend_RejectsNegativeEntryCount(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")
	b := NewFileBackend(nil)
	require.NoError(t, b.Save(ctx, dir, testSnapshot(2)))

	path := filepath.Join(dir, manifestFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["entry_count"] = -1
	data, err = json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = b.Load(ctx, dir)
	assert.ErrorIs(t, err, errs.ErrStorage)
	_, err = b.ReadManifest(ctx, dir)
	assert.ErrorIs(t, err, errs.ErrStorage)
}

func TestBackends_LoadDuringConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	for name, tc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tc.backend.Save(ctx, tc.location, testSnapshot(2)))

			done := make(chan error, 1)
			go func() {
				for i := 0; i < 100; i++ {
					if err := tc.backend.Save(ctx, tc.location, testSnapshot(2+i%3)); err != nil {
						done <- err
						return
					}
				}
				done <- nil
			}()

			loads := 0
			for {
				select {
				case err := <-done:
					require.NoError(t, err)
					t.Logf("%d loads during saves", loads)
					return
				default:
				}
				snap, err := tc.backend.Load(ctx, tc.location)
				require.NoError(t, err)
				require.Len(t, snap.Entries, snap.Manifest.EntryCount)
				loads++
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{BackendFile, BackendSQLite}, r.Names())

	b, err := r.New(BackendSQLite, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, b.Name())

	_, err = r.New("chroma", nil)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
