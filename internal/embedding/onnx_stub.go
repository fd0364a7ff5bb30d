//go:build !cgo
// +build !cgo

package embedding

import (
	"context"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/errs"
)

// ONNXProvider stub type when built without CGO (see onnx.go for real implementation).
type ONNXProvider struct{}

// NewONNXProvider returns a configuration error when built without CGO.
func NewONNXProvider(_ config.EmbeddingConfig) (*ONNXProvider, error) {
	return nil, errs.Configuration("embedding.onnx", "embedding.provider",
		"the onnx provider requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

func (p *ONNXProvider) ID() string      { return "onnx" }
func (p *ONNXProvider) Dimensions() int { return 0 }
func (p *ONNXProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, errs.ErrEmbedding
}
func (p *ONNXProvider) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errs.ErrEmbedding
}
func (p *ONNXProvider) Close() error { return nil }
