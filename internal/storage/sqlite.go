package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/internal/vector"
	"go.uber.org/zap"
)

// SQLiteBackend stores a snapshot as a single SQLite database file. Saves
// build a fresh database next to the target and rename it into place.
type SQLiteBackend struct {
	logger *zap.Logger
}

// NewSQLiteBackend creates a SQLite snapshot backend.
func NewSQLiteBackend(logger *zap.Logger) *SQLiteBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteBackend{logger: logger}
}

// Name returns "sqlite".
func (b *SQLiteBackend) Name() string { return BackendSQLite }

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE manifest (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		body TEXT NOT NULL
	);

	CREATE TABLE entries (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		vector BLOB NOT NULL,
		text TEXT NOT NULL,
		metadata TEXT NOT NULL
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Save writes snap to the database file at path.
func (b *SQLiteBackend) Save(ctx context.Context, path string, snap *Snapshot) error {
	const op = "storage.sqlite.save"
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Storage(op, path, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+uuid.NewString())
	if err := b.write(ctx, tmp, snap); err != nil {
		removeDB(tmp)
		return errs.Storage(op, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		removeDB(tmp)
		return errs.Storage(op, path, err)
	}
	syncDir(dir)
	b.logger.Debug("snapshot saved", zap.String("path", path), zap.Int("count", len(snap.Entries)))
	return nil
}

func (b *SQLiteBackend) write(ctx context.Context, path string, snap *Snapshot) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := initSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	m := snap.Manifest
	m.EntryCount = len(snap.Entries)
	m.DataFile, m.Checksum = "", ""
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO manifest (id, body) VALUES (1, ?)`, string(body)); err != nil {
		return fmt.Errorf("failed to insert manifest: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (seq, id, vector, text, metadata) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range snap.Entries {
		meta, err := json.Marshal(e.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("entry %s: failed to encode metadata: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, int64(e.Seq), e.ID, encodeVector(e.Vector), e.Chunk.Text, string(meta)); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func removeDB(path string) {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
}

func (b *SQLiteBackend) open(op, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.NotFound(op, path)
		}
		return nil, errs.Storage(op, path, err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errs.Storage(op, path, err)
	}
	// One connection keeps every read on the file generation opened first;
	// a concurrent Save renames a new file over path.
	db.SetMaxOpenConns(1)
	return db, nil
}

func readManifest(ctx context.Context, db *sql.DB) (*Manifest, error) {
	var body string
	if err := db.QueryRowContext(ctx, `SELECT body FROM manifest WHERE id = 1`).Scan(&body); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// ReadManifest reads only the manifest row.
func (b *SQLiteBackend) ReadManifest(ctx context.Context, path string) (*Manifest, error) {
	const op = "storage.sqlite.manifest"
	db, err := b.open(op, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	m, err := readManifest(ctx, db)
	if err != nil {
		return nil, errs.Storage(op, path, err)
	}
	if err := checkVersion(op, path, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads the snapshot in the database file at path.
func (b *SQLiteBackend) Load(ctx context.Context, path string) (*Snapshot, error) {
	const op = "storage.sqlite.load"
	db, err := b.open(op, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	m, err := readManifest(ctx, db)
	if err != nil {
		return nil, errs.Storage(op, path, err)
	}
	if err := checkVersion(op, path, m); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT seq, id, vector, text, metadata FROM entries ORDER BY seq`)
	if err != nil {
		return nil, errs.Storage(op, path, err)
	}
	defer rows.Close()

	entries := make([]*vector.Entry, 0, min(m.EntryCount, maxPrealloc))
	for rows.Next() {
		var (
			seq      int64
			id, text string
			blob     []byte
			meta     string
		)
		if err := rows.Scan(&seq, &id, &blob, &text, &meta); err != nil {
			return nil, errs.Storage(op, path, err)
		}
		v, err := decodeVector(blob, m.Dimension)
		if err != nil {
			return nil, errs.Storage(op, path, fmt.Errorf("entry %s: %w", id, err))
		}
		md, err := models.DecodeMetadata([]byte(meta))
		if err != nil {
			return nil, errs.Storage(op, path, fmt.Errorf("entry %s: %w", id, err))
		}
		entries = append(entries, &vector.Entry{
			ID:     id,
			Seq:    uint64(seq),
			Vector: v,
			Chunk:  models.Chunk{Text: text, Metadata: md},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, path, err)
	}
	if len(entries) != m.EntryCount {
		return nil, errs.Storagef(op, path, "manifest records %d entries, found %d", m.EntryCount, len(entries))
	}
	b.logger.Debug("snapshot loaded", zap.String("path", path), zap.Int("count", len(entries)))
	return &Snapshot{Manifest: *m, Entries: entries}, nil
}
