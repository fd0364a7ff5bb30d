//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXProvider runs a local sentence-embedding model through ONNX Runtime.
// It requires CGO and the onnxruntime shared library.
type ONNXProvider struct {
	id         string
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	// Tensors are bound to the session; Embed overwrites the input data in place.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXProvider loads the model at cfg.ModelPath. InitializeEnvironment is called if not already done.
func NewONNXProvider(cfg config.EmbeddingConfig) (*ONNXProvider, error) {
	const op = "embedding.onnx"
	if cfg.ModelPath == "" {
		return nil, errs.Configuration(op, "embedding.model_path", "required for the onnx provider")
	}
	if cfg.Dimensions <= 0 {
		return nil, errs.Configuration(op, "embedding.dimensions", "must be set for the onnx provider")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 2 {
		maxTokens = 256
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	tokenizer := WordTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)
	shape := ort.NewShape(1, int64(maxTokens))

	p := &ONNXProvider{dimensions: cfg.Dimensions, maxTokens: maxTokens, tokenizer: tokenizer}
	var err error
	if p.inputIDsTensor, err = ort.NewTensor(shape, inputIDs); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if p.attentionMaskTensor, err = ort.NewTensor(shape, attentionMask); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if p.tokenTypeIDsTensor, err = ort.NewTensor(shape, tokenTypeIDs); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	if p.outputTensor, err = ort.NewTensor(ort.NewShape(1, int64(cfg.Dimensions)), make([]float32, cfg.Dimensions)); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	p.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{p.inputIDsTensor, p.attentionMaskTensor, p.tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{p.outputTensor},
		nil,
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = strings.TrimSuffix(filepath.Base(cfg.ModelPath), filepath.Ext(cfg.ModelPath))
	}
	p.id = "onnx/" + model
	return p, nil
}

func (p *ONNXProvider) ID() string { return p.id }

func (p *ONNXProvider) Dimensions() int { return p.dimensions }

// Embed runs one inference. Calls are serialised because the session tensors are shared.
func (p *ONNXProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := p.tokenizer.Tokenize(text, p.maxTokens)
	copy(p.inputIDsTensor.GetData(), inputIDs)
	copy(p.attentionMaskTensor.GetData(), attentionMask)
	copy(p.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	embedding := make([]float32, p.dimensions)
	copy(embedding, p.outputTensor.GetData()[:p.dimensions])
	utils.NormalizeL2(embedding)
	return embedding, nil
}

// EmbedBatch calls Embed for each text.
func (p *ONNXProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// Close destroys the session and tensors.
func (p *ONNXProvider) Close() error {
	var err error
	if p.session != nil {
		err = p.session.Destroy()
		p.session = nil
	}
	if p.inputIDsTensor != nil {
		_ = p.inputIDsTensor.Destroy()
	}
	if p.attentionMaskTensor != nil {
		_ = p.attentionMaskTensor.Destroy()
	}
	if p.tokenTypeIDsTensor != nil {
		_ = p.tokenTypeIDsTensor.Destroy()
	}
	if p.outputTensor != nil {
		_ = p.outputTensor.Destroy()
	}
	p.inputIDsTensor, p.attentionMaskTensor, p.tokenTypeIDsTensor, p.outputTensor = nil, nil, nil, nil
	return err
}
