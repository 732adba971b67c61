package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/mizan/pkg/utils"
	"go.uber.org/zap"
)

const (
	// DefaultQueryPrefix marks query-side inputs for E5-style models.
	DefaultQueryPrefix = "query: "
	// DefaultBatchSize bounds how many texts go to the backend at once.
	DefaultBatchSize = 8
)

// Provider turns a Backend into an Embedder: fixed-size batching, query prefixing,
// L2 normalization, and an optional document-side cache. Queries are never cached.
type Provider struct {
	backend     Backend
	batchSize   int
	queryPrefix string
	cache       *EmbeddingCache
	logger      *zap.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithBatchSize sets the backend batch size.
func WithBatchSize(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithQueryPrefix overrides the query prefix.
func WithQueryPrefix(prefix string) Option {
	return func(p *Provider) {
		p.queryPrefix = prefix
	}
}

// WithDocumentCache enables an LRU cache for document embeddings.
func WithDocumentCache(size int) Option {
	return func(p *Provider) {
		if size > 0 {
			p.cache = NewEmbeddingCache(size)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// NewProvider wraps backend.
func NewProvider(backend Backend, opts ...Option) *Provider {
	p := &Provider{
		backend:     backend,
		batchSize:   DefaultBatchSize,
		queryPrefix: DefaultQueryPrefix,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EmbedDocuments embeds passages without a prefix. Output order matches input order.
func (p *Provider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var pending []int
	for i, text := range texts {
		if p.cache != nil {
			if v, ok := p.cache.Get(text); ok {
				out[i] = v
				continue
			}
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += p.batchSize {
		end := start + p.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := make([]string, 0, end-start)
		for _, idx := range pending[start:end] {
			batch = append(batch, texts[idx])
		}
		vectors, err := p.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		for j, idx := range pending[start:end] {
			out[idx] = vectors[j]
			if p.cache != nil {
				p.cache.Set(texts[idx], vectors[j])
			}
		}
		if p.logger != nil {
			p.logger.Debug("embedded batch", zap.Int("from", start), zap.Int("to", end), zap.Int("total", len(pending)))
		}
	}
	return out, nil
}

// EmbedQuery embeds a question with the query prefix.
func (p *Provider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := p.embedBatch(ctx, []string{p.queryPrefix + query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vectors[0], nil
}

func (p *Provider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors, err := p.backend.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("backend returned %d vectors for %d texts", len(vectors), len(texts))
	}
	dim := p.backend.Dimensions()
	for i, v := range vectors {
		if dim > 0 && len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		utils.NormalizeL2(v)
	}
	return vectors, nil
}

// Tokenizer returns the backend's tokenizer, or SimpleTokenizer when it exposes none.
func (p *Provider) Tokenizer() Tokenizer {
	if tp, ok := p.backend.(TokenizerProvider); ok {
		return tp.Tokenizer()
	}
	return &SimpleTokenizer{}
}

// Dimensions returns the backend dimension.
func (p *Provider) Dimensions() int {
	return p.backend.Dimensions()
}

// Cache returns the document cache, or nil when disabled.
func (p *Provider) Cache() *EmbeddingCache {
	return p.cache
}

// Close closes the backend.
func (p *Provider) Close() error {
	return p.backend.Close()
}
