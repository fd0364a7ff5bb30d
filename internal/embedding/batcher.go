package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/regqa/internal/errs"
	"golang.org/x/sync/errgroup"
)

// batcher splits large inputs into batches embedded concurrently. Output
// order always matches input order. Each call to the wrapped provider is
// bounded by timeout, even when the provider ignores its context.
type batcher struct {
	Provider
	size        int
	concurrency int
	timeout     time.Duration
}

func (b *batcher) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errs.Embeddingf("embedding.embed", b.ID(), "expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

func (b *batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	if len(texts) <= b.size {
		return b.call(ctx, texts)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))
		g.Go(func() error {
			vecs, err := b.call(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return errs.Embeddingf("embedding.embed_batch", b.ID(), "returned %d embeddings for %d inputs", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type batchResult struct {
	vecs [][]float32
	err  error
}

func (b *batcher) call(ctx context.Context, texts []string) ([][]float32, error) {
	if b.timeout <= 0 {
		return b.Provider.EmbedBatch(ctx, texts)
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan batchResult, 1)
	go func() {
		vecs, err := b.Provider.EmbedBatch(ctx, texts)
		done <- batchResult{vecs: vecs, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, b.timedOut(ctx.Err())
		}
		return r.vecs, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, b.timedOut(ctx.Err())
		}
		return nil, errs.Embedding("embedding.embed_batch", b.ID(), ctx.Err())
	}
}

func (b *batcher) timedOut(cause error) error {
	return errs.Embedding("embedding.embed_batch", b.ID(), fmt.Errorf("timed out after %s: %w", b.timeout, cause))
}
