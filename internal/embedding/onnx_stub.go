//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX encoder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXConfig configures an ONNX encoder.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	Pooling    Pooling
	OutputName string
}

// ONNXEncoder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEncoder struct{}

// NewONNXEncoder returns an error when built without CGO.
func NewONNXEncoder(_ ONNXConfig) (*ONNXEncoder, error) {
	return nil, errNoCGO
}

// EmbedBatch always fails without CGO.
func (e *ONNXEncoder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errNoCGO
}

// Dimensions returns 0 without CGO.
func (e *ONNXEncoder) Dimensions() int { return 0 }

// Close is a no-op without CGO.
func (e *ONNXEncoder) Close() error { return nil }
