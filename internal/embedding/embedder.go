// Package embedding maps passages and questions to L2-normalized dense vectors.
package embedding

import (
	"context"
	"fmt"
)

// Backend is a raw embedding model: one vector per input text, in input order.
// Vectors need not be normalized.
type Backend interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Embedder produces comparable document and query vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Dimensions() int
}

// TokenizerProvider is implemented by backends that expose the tokenizer their model expects.
type TokenizerProvider interface {
	Tokenizer() Tokenizer
}

// Pooling selects how token representations collapse into one vector.
type Pooling string

const (
	// PoolingMean averages token states under the attention mask.
	PoolingMean Pooling = "mean"
	// PoolingCLS takes the first token state.
	PoolingCLS Pooling = "cls"
)

// ParsePooling validates a configured pooling name. Empty means mean pooling.
func ParsePooling(s string) (Pooling, error) {
	switch Pooling(s) {
	case "", PoolingMean:
		return PoolingMean, nil
	case PoolingCLS:
		return PoolingCLS, nil
	default:
		return "", fmt.Errorf("unknown embedding method %q (want mean or cls)", s)
	}
}
