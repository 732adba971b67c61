// Package retriever answers a question with the nearest passages of the index.
package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/mizan/internal/embedding"
	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/normalize"
	"go.uber.org/zap"
)

// DefaultTopK is the number of passages returned when the caller does not choose.
const DefaultTopK = 5

// Searcher is the vector index operation the retriever needs.
type Searcher interface {
	Search(ctx context.Context, query []float32, topK int) ([]models.RetrievalResult, error)
}

// Retriever normalizes a query, embeds it with the query convention, and searches.
type Retriever struct {
	embedder embedding.Embedder
	index    Searcher
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New creates a retriever over index using embedder for queries.
func New(embedder embedding.Embedder, index Searcher, opts ...Option) *Retriever {
	r := &Retriever{embedder: embedder, index: index, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to topK passages in descending score order together with the
// query embedding. topK <= 0 means DefaultTopK.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, []float32, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	start := time.Now()
	normalized := normalize.Text(query)
	vec, err := r.embedder.EmbedQuery(ctx, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := r.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search index: %w", err)
	}
	fields := []zap.Field{
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
		zap.Duration("took", time.Since(start)),
	}
	if len(results) > 0 {
		fields = append(fields, zap.Float64("top_score", results[0].Score))
	}
	r.logger.Debug("retrieved passages", fields...)
	return results, vec, nil
}
