package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/embedding"
	"github.com/hyperjump/regqa/internal/indexer"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/internal/search"
	"github.com/hyperjump/regqa/internal/storage"
	"github.com/hyperjump/regqa/internal/vector"
	"github.com/hyperjump/regqa/internal/vectorstore"
)

func BenchmarkFuse(b *testing.B) {
	kw := make(map[string]float64)
	sem := make(map[string]float64)
	for i := 0; i < 100; i++ {
		id := vector.FormatID(uint64(i + 1))
		kw[id] = float64(i) / 100
		sem[id] = float64(100-i) / 100
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = search.Fuse(kw, sem, 0.3, 0.7)
	}
}

func BenchmarkIndexSearch(b *testing.B) {
	const dim, n = 384, 1000
	idx, err := vector.New(dim, "bench/v1", vector.MetricCosine)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	vecs := make([][]float32, n)
	chunks := make([]models.Chunk, n)
	for i := 0; i < n; i++ {
		vecs[i] = make([]float32, dim)
		vecs[i][0] = float32(i) / n
		vecs[i][i%dim] += 1
		chunks[i] = models.Chunk{Text: fmt.Sprintf("chunk %d", i)}
	}
	if _, err := idx.Append(ctx, chunks, vecs); err != nil {
		b.Fatal(err)
	}
	query := make([]float32, dim)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10)
	}
}

func BenchmarkHashProvider_Embed(b *testing.B) {
	p, err := embedding.NewHashProvider(384)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Embed(ctx, "essential entities shall notify the CSIRT of any significant incident")
	}
}

func BenchmarkChunker_Split(b *testing.B) {
	c, err := indexer.NewChunker(1000, 200, config.DefaultSeparators)
	if err != nil {
		b.Fatal(err)
	}
	para := "Member States shall ensure that essential and important entities take appropriate and proportionate technical, operational and organisational measures. "
	doc := models.RawDocument{Text: strings.Repeat(strings.Repeat(para, 4)+"\n\n", 50)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Split(doc)
	}
}

func BenchmarkAnswerableContext(b *testing.B) {
	for _, hybrid := range []bool{false, true} {
		b.Run(fmt.Sprintf("hybrid=%v", hybrid), func(b *testing.B) {
			p, err := embedding.NewHashProvider(384)
			if err != nil {
				b.Fatal(err)
			}
			store, err := vectorstore.New(storage.NewFileBackend(nil), p)
			if err != nil {
				b.Fatal(err)
			}
			ctx := context.Background()
			texts := make([]string, 500)
			chunks := make([]models.Chunk, len(texts))
			for i := range texts {
				texts[i] = fmt.Sprintf("Article %d obligation %d concerning incident reporting and supervision of sector %d", i, i*7, i%13)
				chunks[i] = models.Chunk{Text: texts[i]}
			}
			vecs, err := p.EmbedBatch(ctx, texts)
			if err != nil {
				b.Fatal(err)
			}
			idx, err := store.Create(ctx, chunks, vecs)
			if err != nil {
				b.Fatal(err)
			}
			// No result cache, so every iteration runs the full query path.
			engine, err := search.NewEngine(store, idx, config.RetrievalConfig{
				K: 4, Hybrid: hybrid, KeywordWeight: 0.3, SemanticWeight: 0.7, CandidateK: 50,
			})
			if err != nil {
				b.Fatal(err)
			}
			defer engine.Close()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.AnswerableContext(ctx, "incident reporting supervision", 4); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
