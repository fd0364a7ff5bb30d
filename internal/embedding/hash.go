package embedding

import (
	"context"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/pkg/utils"
)

// HashProviderID is the provider_id recorded for hash embeddings.
const HashProviderID = "hash/v1"

// HashProvider is a deterministic offline provider. Each lowercase word is
// hashed into one of `dimensions` signed buckets and the result is L2
// normalised, so texts sharing vocabulary score a higher cosine similarity.
type HashProvider struct {
	dimensions int
}

// NewHashProvider returns a hash provider producing vectors of the given dimension.
func NewHashProvider(dimensions int) (*HashProvider, error) {
	if dimensions <= 0 {
		return nil, errs.Configuration("embedding.hash", "embedding.dimensions", "must be positive, got %d", dimensions)
	}
	return &HashProvider{dimensions: dimensions}, nil
}

func (p *HashProvider) ID() string { return HashProviderID }

func (p *HashProvider) Dimensions() int { return p.dimensions }

// Embed returns the hashed bag-of-words vector for text. Text without words
// yields the zero vector.
func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, p.dimensions)
	for _, w := range Words(text) {
		h := hashToken(w)
		i := h % uint64(p.dimensions)
		if h>>63 == 1 {
			vec[i]--
		} else {
			vec[i]++
		}
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Close is a no-op.
func (p *HashProvider) Close() error { return nil }
