package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hyperjump/mizan/internal/config"
	"github.com/hyperjump/mizan/internal/embedding"
	"github.com/hyperjump/mizan/internal/generator"
	"github.com/hyperjump/mizan/internal/indexer"
	"github.com/hyperjump/mizan/internal/keyword"
	"github.com/hyperjump/mizan/internal/llm"
	"github.com/hyperjump/mizan/internal/rag"
	"github.com/hyperjump/mizan/internal/retriever"
	"github.com/hyperjump/mizan/internal/storage"
	"github.com/hyperjump/mizan/internal/vector"
	"go.uber.org/zap"
)

// Embedding backends other than the remote services in package llm.
const (
	backendONNX = "onnx"
	backendHash = "hash"
)

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	Embedder     *embedding.Provider
	VectorIndex  *vector.Index
	KeywordIndex *keyword.BleveIndex
	Retriever    *retriever.Retriever
	Indexer      *indexer.Indexer
	// Generator and Pipeline are nil unless requested.
	Generator *generator.Generator
	Pipeline  *rag.Orchestrator

	closers []io.Closer
}

// Close releases every component. Safe to call on partially initialized components.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
	c.closers = nil
}

func (c *Components) track(cl io.Closer) {
	c.closers = append(c.closers, cl)
}

// initializeComponents wires storage, indices, embedder, retriever and indexer from cfg.
// With withGenerator the generation model, rules and answering pipeline are wired too.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, withGenerator bool) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store
	c.track(store)

	backend, err := newEmbeddingBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Embedder = embedding.NewProvider(backend,
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithQueryPrefix(cfg.Embedding.QueryPrefix),
		embedding.WithDocumentCache(cfg.Embedding.CacheSize),
		embedding.WithLogger(logger),
	)
	c.track(c.Embedder)

	var vecStore vector.Store
	switch vector.StoreType(cfg.Storage.IndexType) {
	case vector.StoreTypeSQLite:
		vecStore = vector.NewSQLiteStore(store)
	default:
		vecStore, err = vector.NewStore(cfg.Storage.IndexType, cfg.Storage.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
	}
	c.VectorIndex = vector.New(vecStore, vector.WithLogger(logger))
	c.track(c.VectorIndex)
	if err := c.VectorIndex.Load(ctx); err != nil {
		logger.Warn("vector index not loaded (run build)",
			zap.String("location", c.VectorIndex.Location()),
			zap.Error(err))
	} else {
		logger.Info("vector index loaded",
			zap.Int("rows", c.VectorIndex.Size()),
			zap.String("build_id", c.VectorIndex.Info().BuildID))
	}

	c.KeywordIndex, err = keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath, keyword.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.track(c.KeywordIndex)

	c.Retriever = retriever.New(c.Embedder, c.VectorIndex, retriever.WithLogger(logger))

	chunker := indexer.NewChunker(
		cfg.Chunking.ChunkSize,
		cfg.Chunking.ChunkOverlap,
		c.Embedder.Tokenizer(),
		indexer.WithSeparators(cfg.Chunking.Separators),
	)
	c.Indexer = indexer.NewIndexer(c.Embedder, c.VectorIndex, chunker,
		indexer.WithLogger(logger),
		indexer.WithStorage(store),
		indexer.WithKeywordIndex(c.KeywordIndex),
		indexer.WithEmbeddingMethod(cfg.Retrieval.EmbeddingMethod),
	)

	if withGenerator {
		model, err := newGeneratorModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cl, isCloser := model.(io.Closer); isCloser {
			c.track(cl)
		}
		rules := generator.DefaultRules()
		if cfg.RulesPath != "" {
			rules, err = generator.LoadRules(cfg.RulesPath)
			if err != nil {
				return nil, err
			}
		}
		padToken := cfg.Generator.PadToken
		if padToken == "" {
			padToken = cfg.Generator.EOSToken
		}
		c.Generator = generator.New(model, rules,
			generator.WithLogger(logger),
			generator.WithNumBeams(cfg.Generator.NumBeams),
			generator.WithNoRepeatNgramSize(cfg.Generator.NoRepeatNgramSize),
			generator.WithPadToken(padToken),
		)
		c.Pipeline = rag.New(c.Retriever, c.Generator,
			rag.WithTopK(cfg.Retrieval.TopK),
			rag.WithThreshold(cfg.Retrieval.Threshold),
			rag.WithLogger(logger),
		)
	}

	ok = true
	return c, nil
}

// newEmbeddingBackend creates the configured embedding backend. An ONNX model that
// cannot be loaded falls back to the hash encoder so the pipeline still runs.
func newEmbeddingBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (embedding.Backend, error) {
	pooling, err := embedding.ParsePooling(cfg.Retrieval.EmbeddingMethod)
	if err != nil {
		return nil, err
	}
	ec := cfg.Embedding
	switch ec.Backend {
	case backendONNX:
		enc, err := embedding.NewONNXEncoder(embedding.ONNXConfig{
			ModelPath:  ec.ModelPath,
			Dimensions: ec.Dimensions,
			MaxTokens:  ec.MaxTokens,
			Pooling:    pooling,
		})
		if err != nil {
			logger.Warn("ONNX encoder unavailable, falling back to hash encoder",
				zap.String("model_path", ec.ModelPath),
				zap.Error(err))
			return embedding.NewHashEncoder(ec.Dimensions, ec.MaxTokens, pooling), nil
		}
		return enc, nil
	case backendHash:
		return embedding.NewHashEncoder(ec.Dimensions, ec.MaxTokens, pooling), nil
	case llm.BackendOllama:
		return llm.NewOllamaClient(cfg.Providers.Ollama.BaseURL, cfg.Model.EmbeddingModel, "",
			llm.WithDimensions(ec.Dimensions),
		), nil
	case llm.BackendGemini:
		return llm.NewGeminiClient(ctx, cfg.Providers.Gemini.APIKey, "",
			cfg.Providers.Gemini.EmbeddingModel, ec.Dimensions)
	case llm.BackendVertex:
		return llm.NewVertexClient(ctx, cfg.Providers.Vertex.Project, cfg.Providers.Vertex.Location, ec.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s (supported: onnx, hash, ollama, gemini, vertex)", ec.Backend)
	}
}

// errNoGenerator is returned when answering is requested without a generation backend.
var errNoGenerator = errors.New("no generator backend configured")

// newGeneratorModel creates the configured generation model.
func newGeneratorModel(ctx context.Context, cfg *config.Config) (generator.Model, error) {
	switch cfg.Generator.Backend {
	case llm.BackendOllama:
		return llm.NewOllamaClient(cfg.Providers.Ollama.BaseURL, "", cfg.Model.GeneratorModel,
			llm.WithSeed(cfg.Generator.Seed),
			llm.WithStop(stopTokens(cfg.Generator)...),
		), nil
	case llm.BackendGemini:
		return llm.NewGeminiClient(ctx, cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.Model,
			cfg.Providers.Gemini.EmbeddingModel, cfg.Embedding.Dimensions)
	case llm.BackendVertex:
		return llm.NewVertexClient(ctx, cfg.Providers.Vertex.Project, cfg.Providers.Vertex.Location,
			cfg.Embedding.Dimensions)
	case "", "none":
		return nil, errNoGenerator
	default:
		return nil, fmt.Errorf("unknown generator backend: %s (supported: ollama, gemini, vertex)", cfg.Generator.Backend)
	}
}

// stopTokens returns the end-of-sequence marker as a stop sequence, if configured.
func stopTokens(gc config.GeneratorConfig) []string {
	if gc.EOSToken == "" {
		return nil
	}
	return []string{gc.EOSToken}
}
