package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/errs"
	"go.uber.org/zap"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaProvider uses a local Ollama instance to generate embeddings.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	maxRetries int
	logger     *zap.Logger
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// statusError is a non-200 response from Ollama.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama api error (status %d): %s", e.code, e.body)
}

// NewOllamaProvider returns an Ollama provider. Ollama models do not report
// their size up front, so embedding.dimensions must be configured.
func NewOllamaProvider(cfg config.EmbeddingConfig, client *http.Client, logger *zap.Logger) (*OllamaProvider, error) {
	if cfg.Dimensions <= 0 {
		return nil, errs.Configuration("embedding.ollama", "embedding.dimensions", "must be set for the ollama provider")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: cfg.Dimensions,
		client:     client,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}, nil
}

func (p *OllamaProvider) ID() string { return "ollama/" + p.model }

func (p *OllamaProvider) Dimensions() int { return p.dimensions }

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, p, text)
}

// EmbedBatch posts all texts to /api/embed in one request.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var out ollamaEmbedResponse
	err = withRetry(ctx, p.maxRetries, p.logger, p.ID(), transientOllama, func(ctx context.Context) error {
		return p.post(ctx, body, &out)
	})
	if err != nil {
		return nil, errs.Embedding("embedding.ollama", p.ID(), err)
	}
	return out.Embeddings, nil
}

func (p *OllamaProvider) post(ctx context.Context, body []byte, out *ollamaEmbedResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (p *OllamaProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func transientOllama(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return transientStatus(se.code)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
