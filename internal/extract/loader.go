package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/fileid"
	"github.com/hyperjump/regqa/internal/models"
	"go.uber.org/zap"
)

// DefaultExtensions are the formats loaded when none are configured.
var DefaultExtensions = []string{".txt", ".md", ".pdf", ".docx", ".html", ".htm", ".xlsx", ".odt", ".rtf"}

// Loader turns files and folders into raw documents. Every document carries
// the source path, a stable doc_id and, for PDFs, the 1-based page number.
type Loader struct {
	extractor  *Extractor
	extensions []string
	recursive  bool
	logger     *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRecursive sets whether LoadDirectory descends into subfolders (default true).
func WithRecursive(recursive bool) LoaderOption {
	return func(l *Loader) { l.recursive = recursive }
}

// WithLogger sets the logger used for skipped-file warnings.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader returns a loader accepting the given extensions (with or
// without the leading dot). An empty list means DefaultExtensions.
func NewLoader(extensions []string, opts ...LoaderOption) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	l := &Loader{
		extractor:  NewExtractor(),
		extensions: extensions,
		recursive:  true,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Supports reports whether path has an accepted extension.
func (l *Loader) Supports(path string) bool {
	return extensionAllowed(strings.ToLower(filepath.Ext(path)), l.extensions)
}

// LoadFile loads a single file. PDFs yield one document per non-empty page;
// other formats yield one document, or none when the file has no text.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]models.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if !l.Supports(absPath) {
		return nil, errs.Configuration("extract.load_file", "extension",
			"unsupported file format %q (supported: %s)", filepath.Ext(absPath), strings.Join(l.extensions, ", "))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	pages, err := l.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", absPath, err)
	}
	docID := fileid.DocID(absPath)
	var docs []models.RawDocument
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		meta := map[string]any{
			models.MetaSource: absPath,
			models.MetaDocID:  docID,
			models.MetaTitle:  filepath.Base(absPath),
		}
		if p.Number > 0 {
			meta[models.MetaPage] = p.Number
		}
		docs = append(docs, models.RawDocument{Text: p.Text, Metadata: meta})
	}
	l.logger.Debug("file loaded", zap.String("path", absPath), zap.Int("count", len(docs)))
	return docs, nil
}

// LoadDirectory loads every supported file under dir in lexical path order.
// Hidden folders are skipped. A file that fails to load is logged and
// skipped; the walk continues.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) ([]models.RawDocument, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var docs []models.RawDocument
	files := 0
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			l.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && (!l.recursive || strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if !l.Supports(path) {
			return nil
		}
		loaded, err := l.LoadFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("failed to load file", zap.String("path", path), zap.Error(err))
			return nil
		}
		files++
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("directory loaded",
		zap.String("path", absDir),
		zap.Int("files", files),
		zap.Int("count", len(docs)))
	return docs, nil
}

// Load loads each path, a file or a directory, in order.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]models.RawDocument, error) {
	var docs []models.RawDocument
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		var loaded []models.RawDocument
		if info.IsDir() {
			loaded, err = l.LoadDirectory(ctx, p)
		} else {
			loaded, err = l.LoadFile(ctx, p)
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
