package embedding

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/errs"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-ada-002"

var openAIModelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// OpenAIProvider calls the OpenAI embeddings endpoint (or any compatible base URL).
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	dimensions  int
	requestDims int // sent for text-embedding-3 models shortened below their native size
	maxRetries  int
	logger      *zap.Logger
}

// NewOpenAIProvider validates the configuration and returns a provider. A
// missing API key or unknown output dimension is a configuration error.
func NewOpenAIProvider(cfg config.EmbeddingConfig, httpClient *http.Client, logger *zap.Logger) (*OpenAIProvider, error) {
	const op = "embedding.openai"
	if cfg.APIKey == "" {
		return nil, errs.Configuration(op, "embedding.api_key", "OpenAI API key is not set (REGQA_OPENAI_API_KEY or OPENAI_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	dims := cfg.Dimensions
	requestDims := 0
	native, known := openAIModelDimensions[model]
	switch {
	case dims == 0 && !known:
		return nil, errs.Configuration(op, "embedding.dimensions", "unknown output size for model %q; set embedding.dimensions", model)
	case dims == 0:
		dims = native
	case known && dims != native:
		if !strings.HasPrefix(model, "text-embedding-3") {
			return nil, errs.Configuration(op, "embedding.dimensions", "model %q produces %d dimensions, configured %d", model, native, dims)
		}
		requestDims = dims
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		dimensions:  dims,
		requestDims: requestDims,
		maxRetries:  cfg.MaxRetries,
		logger:      logger,
	}, nil
}

func (p *OpenAIProvider) ID() string { return "openai/" + p.model }

func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, p, text)
}

// EmbedBatch sends all texts in one request. Results are placed by the
// index the API reports, not by response order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.requestDims,
	}
	var resp openai.EmbeddingResponse
	err := withRetry(ctx, p.maxRetries, p.logger, p.ID(), transientOpenAI, func(ctx context.Context) error {
		r, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, errs.Embedding("embedding.openai", p.ID(), err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errs.Embeddingf("embedding.openai", p.ID(), "response index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, errs.Embeddingf("embedding.openai", p.ID(), "no embedding returned for input %d", i)
		}
	}
	return out, nil
}

// Close is a no-op.
func (p *OpenAIProvider) Close() error { return nil }

// transientOpenAI retries rate limits, server errors and transport failures.
// Other API errors (auth, bad request) are permanent.
func transientOpenAI(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
