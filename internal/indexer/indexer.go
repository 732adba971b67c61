package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/mizan/internal/dataset"
	"github.com/hyperjump/mizan/internal/embedding"
	"github.com/hyperjump/mizan/internal/fileid"
	"github.com/hyperjump/mizan/internal/keyword"
	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/storage"
	"github.com/hyperjump/mizan/internal/vector"
	"go.uber.org/zap"
)

// ErrNoPassages is returned when no case yields any passage text.
var ErrNoPassages = errors.New("no passages to index")

// BuildStats summarizes one index build.
type BuildStats struct {
	Cases        int
	SkippedCases int
	Passages     int
	Unchanged    bool
	Info         models.IndexInfo
	Duration     time.Duration
}

// Indexer turns case records into the passage index: chunk, embed, persist, and
// refresh the keyword side index.
type Indexer struct {
	embedder        embedding.Embedder
	index           *vector.Index
	chunker         *Chunker
	storage         storage.Storage      // optional; when set, cases are stored for lookup
	keywordIndex    keyword.PassageIndex // optional; rebuilt after each build
	embeddingMethod string
	logger          *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithStorage stores the case records alongside each build.
func WithStorage(s storage.Storage) IndexerOption {
	return func(idx *Indexer) { idx.storage = s }
}

// WithKeywordIndex rebuilds the keyword index from the passages of each build.
func WithKeywordIndex(k keyword.PassageIndex) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// WithEmbeddingMethod records the embedding method in the index metadata.
func WithEmbeddingMethod(method string) IndexerOption {
	return func(idx *Indexer) { idx.embeddingMethod = method }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(embedder embedding.Embedder, index *vector.Index, chunker *Chunker, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder: embedder,
		index:    index,
		chunker:  chunker,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Build chunks and embeds cases and replaces the whole index. fingerprint identifies
// the source dataset and is stored in the index metadata.
func (idx *Indexer) Build(ctx context.Context, cases []models.CaseRecord, fingerprint string) (*BuildStats, error) {
	start := time.Now()
	stats := &BuildStats{Cases: len(cases)}

	var passages []models.Passage
	for _, rec := range cases {
		ps := idx.chunker.ChunkRecord(rec)
		if len(ps) == 0 {
			stats.SkippedCases++
			idx.logger.Debug("indexer skipping empty case", zap.String("case_id", rec.CaseID))
			continue
		}
		passages = append(passages, ps...)
	}
	if len(passages) == 0 {
		return nil, ErrNoPassages
	}
	stats.Passages = len(passages)

	texts, caseIDs := Flatten(passages)
	vectors, err := idx.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	meta := vector.BuildMeta{EmbeddingMethod: idx.embeddingMethod, Fingerprint: fingerprint}
	if err := idx.index.Build(ctx, vectors, caseIDs, texts, meta); err != nil {
		return nil, fmt.Errorf("failed to build vector index: %w", err)
	}
	stats.Info = idx.index.Info()

	if idx.storage != nil {
		normalized := make([]models.CaseRecord, len(cases))
		for i, rec := range cases {
			normalized[i] = PreprocessCase(rec)
		}
		if err := idx.storage.ReplaceCases(ctx, normalized); err != nil {
			return nil, fmt.Errorf("failed to store cases: %w", err)
		}
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Rebuild(ctx, KeywordDocuments(idx.index.Records())); err != nil {
			return nil, fmt.Errorf("failed to index keywords: %w", err)
		}
	}

	stats.Duration = time.Since(start)
	idx.logger.Info("index built",
		zap.String("build_id", stats.Info.BuildID),
		zap.Int("cases", stats.Cases),
		zap.Int("skipped_cases", stats.SkippedCases),
		zap.Int("passages", stats.Passages),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// BuildFromFile reads the case workbook at path and builds the index. Unless force is
// set, the build is skipped when the loaded index already came from identical bytes.
func (idx *Indexer) BuildFromFile(ctx context.Context, path string, force bool) (*BuildStats, error) {
	fingerprint, err := fileid.Fingerprint(path)
	if err != nil {
		return nil, err
	}
	if !force && idx.index.Loaded() && idx.index.Info().Fingerprint == fingerprint {
		idx.logger.Debug("indexer skipping unchanged dataset", zap.String("path", path))
		info := idx.index.Info()
		return &BuildStats{Unchanged: true, Info: info, Passages: info.Rows}, nil
	}
	cases, err := dataset.ReadCases(path)
	if err != nil {
		return nil, err
	}
	return idx.Build(ctx, cases, fingerprint)
}

// KeywordDocuments converts index rows into keyword documents.
func KeywordDocuments(records []vector.Record) []keyword.Document {
	docs := make([]keyword.Document, len(records))
	for i, r := range records {
		docs[i] = keyword.Document{Row: r.Row, CaseID: r.CaseID, Text: r.Text}
	}
	return docs
}
