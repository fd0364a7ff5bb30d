// Package embedding turns chunk and query text into vectors. Providers are
// selected by name through a Registry; New wraps the selected provider with
// response validation, caching and ordered parallel batching.
package embedding

import (
	"context"

	"github.com/hyperjump/regqa/internal/errs"
)

// Provider produces fixed-length embeddings for text.
type Provider interface {
	// ID identifies the provider and model, e.g. "openai/text-embedding-ada-002".
	// It is recorded in persisted indexes and checked on load.
	ID() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// embedOne runs a single text through EmbedBatch.
func embedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errs.Embeddingf("embedding.embed", p.ID(), "expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}
