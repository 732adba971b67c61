package embedding

import (
	"context"
	"math"
)

// HashEncoder is a deterministic local backend. Each token id maps to a fixed
// pseudo-random state, and the [CLS] state also carries the mean of the other
// token states so that both pooling methods separate different texts.
// The same text always gets the same embedding.
type HashEncoder struct {
	dimensions int
	maxTokens  int
	pooling    Pooling
	tokenizer  *SimpleTokenizer
}

// NewHashEncoder returns a hash encoder of the given dimensions.
func NewHashEncoder(dimensions, maxTokens int, pooling Pooling) *HashEncoder {
	if dimensions <= 0 {
		dimensions = 384
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if pooling == "" {
		pooling = PoolingMean
	}
	return &HashEncoder{
		dimensions: dimensions,
		maxTokens:  maxTokens,
		pooling:    pooling,
		tokenizer:  &SimpleTokenizer{},
	}
}

// EmbedBatch encodes and pools each text.
func (e *HashEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.encode(text)
	}
	return out, nil
}

func (e *HashEncoder) encode(text string) []float32 {
	ids, mask, _ := e.tokenizer.Encode(text, e.maxTokens)
	hidden := make([][]float32, len(ids))
	var n int
	mean := make([]float32, e.dimensions)
	for i, id := range ids {
		if mask[i] == 0 {
			continue
		}
		hidden[i] = e.tokenState(id)
		if i > 0 {
			for j, v := range hidden[i] {
				mean[j] += v
			}
			n++
		}
	}
	if n > 0 {
		for j := range hidden[0] {
			hidden[0][j] = 0.2*hidden[0][j] + mean[j]/float32(n)
		}
	}
	return Pool(hidden, mask, e.dimensions, e.pooling)
}

func (e *HashEncoder) tokenState(id int64) []float32 {
	h := int(id)
	state := make([]float32, e.dimensions)
	for i := range state {
		state[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	return state
}

// Tokenizer returns the tokenizer used to frame inputs.
func (e *HashEncoder) Tokenizer() Tokenizer {
	return e.tokenizer
}

// Dimensions returns the embedding dimension.
func (e *HashEncoder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEncoder.
func (e *HashEncoder) Close() error {
	return nil
}
