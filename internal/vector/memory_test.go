package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
)

func chunks(texts ...string) []models.Chunk {
	out := make([]models.Chunk, len(texts))
	for i, t := range texts {
		out[i] = models.Chunk{Text: t, Metadata: map[string]any{"source": "doc", "chunk_index": i}}
	}
	return out
}

func newIndex(t *testing.T, dim int, metric Metric) *Index {
	t.Helper()
	idx, err := New(dim, "hash/v1", metric)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestIndex_AppendSearch(t *testing.T) {
	idx := newIndex(t, 3, MetricCosine)
	ctx := context.Background()

	ids, err := idx.Append(ctx, chunks("a", "b", "c"), [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != "1" || ids[2] != "3" {
		t.Errorf("ids = %v", ids)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{2, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.Text != "a" || results[1].Chunk.Text != "b" {
		t.Errorf("unexpected order: %+v", results)
	}
	if math.Abs(results[0].Score-1) > 1e-9 {
		t.Errorf("cosine of parallel vectors = %f", results[0].Score)
	}
	if results[0].Score < results[1].Score {
		t.Error("scores must be non-increasing")
	}
}

func TestIndex_SearchReturnsMinKCount(t *testing.T) {
	idx := newIndex(t, 2, MetricCosine)
	ctx := context.Background()
	if _, err := idx.Append(ctx, chunks("x", "y", "z"), [][]float32{{1, 0}, {0, 1}, {1, 1}}); err != nil {
		t.Fatal(err)
	}
	for _, k := range []int{1, 2, 3, 10} {
		res, err := idx.Search(ctx, []float32{1, 0}, k)
		if err != nil {
			t.Fatal(err)
		}
		if want := min(k, 3); len(res) != want {
			t.Errorf("k=%d: got %d results, want %d", k, len(res), want)
		}
	}
}

func TestIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx := newIndex(t, 2, MetricCosine)
	ctx := context.Background()
	vecs := [][]float32{{0, 1}, {1, 0}, {1, 0}, {2, 0}}
	if _, err := idx.Append(ctx, chunks("other", "first", "second", "third"), vecs); err != nil {
		t.Fatal(err)
	}
	res, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{res[0].Chunk.Text, res[1].Chunk.Text, res[2].Chunk.Text}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestIndex_L2Metric(t *testing.T) {
	idx := newIndex(t, 2, MetricL2)
	ctx := context.Background()
	if _, err := idx.Append(ctx, chunks("near", "far"), [][]float32{{1, 1}, {5, 5}}); err != nil {
		t.Fatal(err)
	}
	res, err := idx.Search(ctx, []float32{1, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res[0].Chunk.Text != "near" || res[0].Score != 1 {
		t.Errorf("unexpected l2 results: %+v", res)
	}
	if res[1].Score >= res[0].Score {
		t.Error("farther entry must score lower")
	}
}

func TestIndex_Errors(t *testing.T) {
	idx := newIndex(t, 2, MetricCosine)
	ctx := context.Background()

	if _, err := idx.Append(ctx, chunks("a"), [][]float32{{1, 2, 3}}); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	if _, err := idx.Append(ctx, chunks("a", "b"), [][]float32{{1, 2}}); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error for length mismatch, got %v", err)
	}
	nan := float32(math.NaN())
	if _, err := idx.Append(ctx, chunks("a"), [][]float32{{nan, 1}}); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error for NaN, got %v", err)
	}
	if idx.Size() != 0 || idx.Version() != 0 {
		t.Error("failed appends must leave the index unchanged")
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 0); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error for k=0, got %v", err)
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch for query, got %v", err)
	}
	if _, err := New(0, "p", MetricCosine); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error for zero dimension, got %v", err)
	}
	if _, err := ParseMetric("manhattan"); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error for unknown metric, got %v", err)
	}
}

func TestIndex_AppendCopiesInput(t *testing.T) {
	idx := newIndex(t, 2, MetricCosine)
	ctx := context.Background()
	vec := []float32{1, 0}
	in := chunks("a")
	if _, err := idx.Append(ctx, in, [][]float32{vec}); err != nil {
		t.Fatal(err)
	}
	vec[0] = -1
	in[0].Metadata["source"] = "changed"
	e := idx.Entries()[0]
	if e.Vector[0] != 1 {
		t.Error("index must copy vectors")
	}
	if e.Chunk.Source() != "doc" {
		t.Error("index must copy metadata")
	}
}

func TestRestore_ContinuesSequence(t *testing.T) {
	entries := []*Entry{
		{ID: "1", Seq: 1, Vector: []float32{1, 0}, Chunk: models.Chunk{Text: "a"}},
		{ID: "2", Seq: 2, Vector: []float32{0, 1}, Chunk: models.Chunk{Text: "b"}},
	}
	idx, err := Restore(2, "hash/v1", MetricCosine, entries, 3)
	if err != nil {
		t.Fatal(err)
	}
	ids, err := idx.Append(context.Background(), chunks("c"), [][]float32{{1, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if ids[0] != "3" {
		t.Errorf("next id = %s, want 3", ids[0])
	}

	bad := []*Entry{{ID: "1", Seq: 1, Vector: []float32{1}}}
	if _, err := Restore(2, "hash/v1", MetricCosine, bad, 2); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestIndex_Get(t *testing.T) {
	idx := newIndex(t, 2, MetricCosine)
	ids, err := idx.Append(context.Background(), chunks("a", "b"), [][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	e, ok := idx.Get(ids[1])
	if !ok || e.Chunk.Text != "b" {
		t.Errorf("Get(%s) = %+v, %v", ids[1], e, ok)
	}
	for _, id := range []string{"0", "99", "abc"} {
		if _, ok := idx.Get(id); ok {
			t.Errorf("Get(%q) found an entry", id)
		}
	}
}

func TestIndex_ConcurrentSearchAndAppend(t *testing.T) {
	idx := newIndex(t, 4, MetricCosine)
	ctx := context.Background()
	if _, err := idx.Append(ctx, chunks("seed"), [][]float32{{1, 0, 0, 0}}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				text := fmt.Sprintf("w%d-%d", w, i)
				if _, err := idx.Append(ctx, chunks(text, text), [][]float32{{0, 1, 0, 0}, {0, 0, 1, 0}}); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				res, err := idx.Search(ctx, []float32{0, 1, 0, 0}, 1000)
				if err != nil {
					t.Error(err)
					return
				}
				// Batches are appended as a whole, so the total is always odd.
				if len(res)%2 != 1 {
					t.Errorf("observed a partial append: %d entries", len(res))
					return
				}
			}
		}()
	}
	wg.Wait()
	if idx.Size() != 1+4*50*2 {
		t.Errorf("Size = %d", idx.Size())
	}
}
