package storage

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/internal/vector"
	"go.uber.org/zap"
)

const (
	manifestFile = "manifest.json"
	dataPrefix   = "entries-"
	dataSuffix   = ".bin"
	dataMagic    = "RQIX"

	loadAttempts = 5
)

// FileBackend stores a snapshot as a directory holding manifest.json and one
// binary data file. Each save writes a new data file first and then swaps the
// manifest with a rename, so the manifest always names a complete data file.
type FileBackend struct {
	logger *zap.Logger
}

// NewFileBackend creates a directory snapshot backend.
func NewFileBackend(logger *zap.Logger) *FileBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileBackend{logger: logger}
}

// Name returns "file".
func (b *FileBackend) Name() string { return BackendFile }

// Save writes snap into the directory dir.
func (b *FileBackend) Save(ctx context.Context, dir string, snap *Snapshot) (err error) {
	const op = "storage.file.save"
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Storage(op, dir, err)
	}

	dataName := dataPrefix + uuid.NewString() + dataSuffix
	dataPath := filepath.Join(dir, dataName)
	sum, err := writeAtomic(dir, dataPath, func(w io.Writer) error {
		return writeEntries(w, snap.Entries)
	})
	if err != nil {
		return errs.Storage(op, dataPath, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dataPath)
		}
	}()

	m := snap.Manifest
	m.DataFile = dataName
	m.Checksum = sum
	m.EntryCount = len(snap.Entries)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errs.Storage(op, dir, fmt.Errorf("failed to encode manifest: %w", err))
	}
	manifestPath := filepath.Join(dir, manifestFile)
	if _, err = writeAtomic(dir, manifestPath, func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	}); err != nil {
		return errs.Storage(op, manifestPath, err)
	}
	syncDir(dir)

	b.removeStale(dir, dataName)
	b.logger.Debug("snapshot saved",
		zap.String("path", dir),
		zap.String("data_file", dataName),
		zap.Int("count", m.EntryCount))
	return nil
}

// removeStale deletes data files no longer named by the manifest.
func (b *FileBackend) removeStale(dir, keep string) {
	matches, _ := filepath.Glob(filepath.Join(dir, dataPrefix+"*"+dataSuffix))
	for _, p := range matches {
		if filepath.Base(p) == keep {
			continue
		}
		if err := os.Remove(p); err != nil {
			b.logger.Warn("failed to remove stale data file", zap.String("path", p), zap.Error(err))
		}
	}
}

// ReadManifest reads only manifest.json.
func (b *FileBackend) ReadManifest(ctx context.Context, dir string) (*Manifest, error) {
	const op = "storage.file.manifest"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, manifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.NotFound(op, dir)
		}
		return nil, errs.Storage(op, path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.Storage(op, path, fmt.Errorf("failed to decode manifest: %w", err))
	}
	if err := checkVersion(op, dir, &m); err != nil {
		return nil, err
	}
	if m.DataFile == "" || strings.ContainsAny(m.DataFile, `/\`) {
		return nil, errs.Storagef(op, path, "manifest names invalid data file %q", m.DataFile)
	}
	return &m, nil
}

// Load reads the snapshot in dir and verifies its checksum.
func (b *FileBackend) Load(ctx context.Context, dir string) (*Snapshot, error) {
	const op = "storage.file.load"
	m, f, err := b.openData(ctx, op, dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dataPath := f.Name()

	h := sha256.New()
	r := io.TeeReader(bufio.NewReader(f), h)
	entries, err := readEntries(r, m.EntryCount, m.Dimension)
	if err != nil {
		return nil, errs.Storage(op, dataPath, err)
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, errs.Storage(op, dataPath, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); m.Checksum != "" && got != m.Checksum {
		return nil, errs.Storagef(op, dataPath, "checksum mismatch")
	}
	b.logger.Debug("snapshot loaded", zap.String("path", dir), zap.Int("count", len(entries)))
	return &Snapshot{Manifest: *m, Entries: entries}, nil
}

// openData reads the manifest and opens the data file it names. A concurrent
// Save may remove that file between the two steps; the manifest is then
// re-read, since it names the newer data file.
func (b *FileBackend) openData(ctx context.Context, op, dir string) (*Manifest, *os.File, error) {
	var lastErr error
	for attempt := 0; attempt < loadAttempts; attempt++ {
		m, err := b.ReadManifest(ctx, dir)
		if err != nil {
			return nil, nil, err
		}
		dataPath := filepath.Join(dir, m.DataFile)
		f, err := os.Open(dataPath)
		if err == nil {
			return m, f, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, errs.Storage(op, dataPath, err)
		}
		lastErr = errs.Storage(op, dataPath, err)
		b.logger.Debug("data file replaced during load, retrying", zap.String("path", dataPath))
	}
	return nil, nil, lastErr
}

// writeAtomic writes to a temp file in dir, syncs it and renames it to path.
// It returns the hex sha256 of the written bytes.
func writeAtomic(dir, path string, write func(io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	bw := bufio.NewWriter(io.MultiWriter(tmp, h))
	if err := write(bw); err != nil {
		return "", err
	}
	if err := bw.Flush(); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", err
	}
	ok = true
	return hex.EncodeToString(h.Sum(nil)), nil
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}

func writeEntries(w io.Writer, entries []*vector.Entry) error {
	if _, err := io.WriteString(w, dataMagic); err != nil {
		return err
	}
	enc := &encoder{w: w}
	for _, e := range entries {
		meta, err := json.Marshal(e.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("entry %s: failed to encode metadata: %w", e.ID, err)
		}
		enc.uint64(e.Seq)
		enc.bytes([]byte(e.ID))
		enc.bytes(encodeVector(e.Vector))
		enc.bytes([]byte(e.Chunk.Text))
		enc.bytes(meta)
	}
	return enc.err
}

func readEntries(r io.Reader, count, dim int) ([]*vector.Entry, error) {
	magic := make([]byte, len(dataMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if string(magic) != dataMagic {
		return nil, fmt.Errorf("not a snapshot data file")
	}
	dec := &decoder{r: r}
	entries := make([]*vector.Entry, 0, min(count, maxPrealloc))
	for i := 0; i < count; i++ {
		seq := dec.uint64()
		id := dec.bytes()
		vec := dec.bytes()
		text := dec.bytes()
		meta := dec.bytes()
		if dec.err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, dec.err)
		}
		v, err := decodeVector(vec, dim)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		md, err := models.DecodeMetadata(meta)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, &vector.Entry{
			ID:     string(id),
			Seq:    seq,
			Vector: v,
			Chunk:  models.Chunk{Text: string(text), Metadata: md},
		})
	}
	return entries, nil
}
