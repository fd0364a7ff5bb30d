package embedding

import (
	"context"

	"github.com/hyperjump/regqa/internal/errs"
)

// validated checks every provider response for count and dimension and
// classifies all provider failures as embedding errors.
type validated struct {
	Provider
}

func (v validated) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := v.Provider.Embed(ctx, text)
	if err != nil {
		return nil, v.wrap(err)
	}
	if err := v.check(0, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (v validated) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := v.Provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, v.wrap(err)
	}
	if len(vecs) != len(texts) {
		return nil, errs.Embeddingf("embedding.embed_batch", v.ID(), "returned %d embeddings for %d inputs", len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if err := v.check(i, vec); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (v validated) check(i int, vec []float32) error {
	if len(vec) != v.Dimensions() {
		return errs.Embeddingf("embedding.embed", v.ID(), "embedding %d has %d dimensions, expected %d", i, len(vec), v.Dimensions())
	}
	return nil
}

func (v validated) wrap(err error) error {
	if errs.KindOf(err) == errs.KindEmbedding {
		return err
	}
	return errs.Embedding("embedding.embed", v.ID(), err)
}
