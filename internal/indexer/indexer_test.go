package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/embedding"
	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/internal/storage"
	"github.com/hyperjump/regqa/internal/vectorstore"
)

var regDocs = []models.RawDocument{
	{Text: "Essential entities shall notify the CSIRT of any significant incident.", Metadata: map[string]any{models.MetaSource: "nis2.pdf", models.MetaPage: 1}},
	{Text: "An early warning shall be submitted within 24 hours.", Metadata: map[string]any{models.MetaSource: "nis2.pdf", models.MetaPage: 2}},
	{Text: "Controllers shall keep a record of processing activities.", Metadata: map[string]any{models.MetaSource: "gdpr.pdf"}},
}

type failingProvider struct {
	err error
}

func (f *failingProvider) ID() string      { return "failing/v1" }
func (f *failingProvider) Dimensions() int { return 8 }
func (f *failingProvider) Close() error    { return nil }
func (f *failingProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, f.err
}
func (f *failingProvider) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}

func newTestIndexer(t *testing.T, size, overlap int, p embedding.Provider) *Indexer {
	t.Helper()
	if p == nil {
		hp, err := embedding.NewHashProvider(64)
		if err != nil {
			t.Fatal(err)
		}
		p = hp
	}
	store, err := vectorstore.New(storage.NewFileBackend(nil), p)
	if err != nil {
		t.Fatal(err)
	}
	ix, err := NewIndexer(mustChunker(t, size, overlap), store)
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

func TestNewIndexer_Validation(t *testing.T) {
	if _, err := NewIndexer(nil, nil); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("nil chunker: expected configuration error, got %v", err)
	}
	if _, err := NewIndexer(mustChunker(t, 10, 2), nil); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("nil store: expected configuration error, got %v", err)
	}
}

func TestNewChunkerFromConfig(t *testing.T) {
	c, err := NewChunkerFromConfig(config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 10, Strategy: StrategyArticle})
	if err != nil {
		t.Fatal(err)
	}
	if c.strategy != StrategyArticle {
		t.Errorf("strategy = %q", c.strategy)
	}
	_, err = NewChunkerFromConfig(config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 100})
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestSplit_PreprocessesAndKeepsOrder(t *testing.T) {
	ix := newTestIndexer(t, 200, 20, nil)
	docs := []models.RawDocument{
		{Text: "first\r\nline\x00", Metadata: map[string]any{models.MetaSource: "a"}},
		{Text: "", Metadata: map[string]any{models.MetaSource: "empty"}},
		{Text: "second", Metadata: map[string]any{models.MetaSource: "b"}},
	}
	chunks := ix.Split(docs)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "first\nline" || chunks[0].Source() != "a" {
		t.Errorf("chunk 0 = %+v", chunks[0])
	}
	if chunks[1].Text != "second" || chunks[1].Source() != "b" || chunks[1].Index() != 0 {
		t.Errorf("chunk 1 = %+v", chunks[1])
	}
	if docs[0].Text != "first\r\nline\x00" {
		t.Error("input document was modified")
	}
}

func TestBuild(t *testing.T) {
	ix := newTestIndexer(t, 200, 20, nil)
	ctx := context.Background()
	idx, err := ix.Build(ctx, regDocs)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != len(regDocs) {
		t.Fatalf("size = %d, want %d", idx.Size(), len(regDocs))
	}
	entries := idx.EntriesFrom(0)
	for i, e := range entries {
		if e.Chunk.Text != regDocs[i].Text {
			t.Errorf("entry %d text = %q", i, e.Chunk.Text)
		}
	}

	results, err := ix.Store().SearchWithScore(ctx, idx, "early warning within 24 hours", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.Text != regDocs[1].Text {
		t.Errorf("results = %+v", results)
	}
	if page, ok := results[0].Chunk.Page(); !ok || page != 2 {
		t.Errorf("page = %d, %v", page, ok)
	}
}

func TestBuild_MultipleChunksPerDocument(t *testing.T) {
	ix := newTestIndexer(t, 9, 2, nil)
	idx, err := ix.Build(context.Background(), []models.RawDocument{
		{Text: "AAAA BBBB CCCC DDDD", Metadata: map[string]any{models.MetaSource: "doc1"}},
		{Text: "EEEE", Metadata: map[string]any{models.MetaSource: "doc2"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	entries := idx.EntriesFrom(0)
	if len(entries) < 3 {
		t.Fatalf("expected at least 3 entries, got %d", len(entries))
	}
	last := entries[len(entries)-1].Chunk
	if last.Source() != "doc2" || last.Index() != 0 {
		t.Errorf("last chunk = %+v", last)
	}
	for i, e := range entries[:len(entries)-1] {
		if e.Chunk.Source() != "doc1" || e.Chunk.Index() != i {
			t.Errorf("entry %d = %+v", i, e.Chunk)
		}
	}
}

func TestBuild_Empty(t *testing.T) {
	ix := newTestIndexer(t, 100, 10, nil)
	for _, docs := range [][]models.RawDocument{nil, {{Text: ""}}} {
		if _, err := ix.Build(context.Background(), docs); !errors.Is(err, errs.ErrEmptyInput) {
			t.Errorf("Build(%v): expected empty input error, got %v", docs, err)
		}
	}
}

func TestBuild_ProviderErrorUnchanged(t *testing.T) {
	want := errs.Embeddingf("embedding.test", "failing/v1", "quota exceeded")
	ix := newTestIndexer(t, 100, 10, &failingProvider{err: want})
	_, err := ix.Build(context.Background(), regDocs)
	if err != want {
		t.Errorf("expected provider error unchanged, got %v", err)
	}
}

func TestAddDocuments(t *testing.T) {
	ix := newTestIndexer(t, 200, 20, nil)
	ctx := context.Background()
	idx, err := ix.Build(ctx, regDocs[:1])
	if err != nil {
		t.Fatal(err)
	}
	version := idx.Version()

	n, err := ix.AddDocuments(ctx, idx, regDocs[1:])
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || idx.Size() != 3 {
		t.Errorf("added %d, size %d", n, idx.Size())
	}
	if idx.Version() == version {
		t.Error("version did not change after add")
	}

	n, err = ix.AddDocuments(ctx, idx, nil)
	if err != nil || n != 0 {
		t.Errorf("empty add = %d, %v", n, err)
	}
	if _, err := ix.AddDocuments(ctx, nil, regDocs); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("nil index: expected configuration error, got %v", err)
	}
}

func TestBuildFromPathsAndAddFiles(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus")
	if err := os.MkdirAll(corpus, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(corpus, "a.txt"), []byte("Article 1 Subject matter"), 0600); err != nil {
		t.Fatal(err)
	}
	extra := filepath.Join(dir, "b.md")
	if err := os.WriteFile(extra, []byte("Article 2 Scope"), 0600); err != nil {
		t.Fatal(err)
	}

	ix := newTestIndexer(t, 200, 20, nil)
	ctx := context.Background()
	idx, err := ix.BuildFromPaths(ctx, corpus)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Fatalf("size = %d", idx.Size())
	}
	n, err := ix.AddFiles(ctx, idx, extra)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || idx.Size() != 2 {
		t.Errorf("added %d, size %d", n, idx.Size())
	}
	src := idx.EntriesFrom(1)[0].Chunk.Source()
	if src != extra {
		t.Errorf("source = %q, want %q", src, extra)
	}
}
