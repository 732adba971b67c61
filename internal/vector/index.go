// Package vector provides the exact inner-product passage index and its persistence.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/mizan/internal/models"
)

var (
	// ErrNotLoaded is returned by Search before Build or Load.
	ErrNotLoaded = errors.New("vector index not loaded: call Build or Load first")
	// ErrLengthMismatch is returned by Build when vectors, case ids, and texts differ in length.
	ErrLengthMismatch = errors.New("vectors, case ids, and texts must have the same length")
	// ErrArtifactMissing is returned by Load when the persisted index does not exist.
	ErrArtifactMissing = errors.New("index artifact missing")
	// ErrCorrupt is returned by Load when persisted rows disagree with the index metadata.
	ErrCorrupt = errors.New("index artifact inconsistent")
)

// Record is one index row. Vector, case id, and text are stored together so that
// they can never drift apart.
type Record struct {
	Row    int
	CaseID string
	Text   string
	Vector []float32
}

// Store persists a complete set of records with their metadata.
type Store interface {
	Save(ctx context.Context, info models.IndexInfo, records []Record) error
	Load(ctx context.Context) (models.IndexInfo, []Record, error)
	Location() string
	Close() error
}

// BuildMeta carries descriptive metadata recorded with a build.
type BuildMeta struct {
	EmbeddingMethod string
	Fingerprint     string
}

// Index is an exact inner-product index over unit vectors. It is immutable between
// builds: Build and Load replace the whole state at once.
type Index struct {
	store   Store
	logger  *zap.Logger
	info    models.IndexInfo
	records []Record
	loaded  bool
	mu      sync.RWMutex
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) {
		ix.logger = l
	}
}

// New returns an empty index persisted through store.
func New(store Store, opts ...Option) *Index {
	ix := &Index{store: store}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build validates, persists, and activates a new index. Nothing is written when the
// inputs are inconsistent.
func (ix *Index) Build(ctx context.Context, vectors [][]float32, caseIDs, texts []string, meta BuildMeta) error {
	if len(vectors) != len(caseIDs) || len(vectors) != len(texts) {
		return fmt.Errorf("%w: %d vectors, %d case ids, %d texts", ErrLengthMismatch, len(vectors), len(caseIDs), len(texts))
	}
	if len(vectors) == 0 {
		return fmt.Errorf("cannot build an empty index")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("vectors must not be empty")
	}
	records := make([]Record, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
		records[i] = Record{
			Row:    i,
			CaseID: caseIDs[i],
			Text:   texts[i],
			Vector: append([]float32(nil), v...),
		}
	}
	info := models.IndexInfo{
		BuildID:         uuid.New().String(),
		Rows:            len(records),
		Dimensions:      dim,
		EmbeddingMethod: meta.EmbeddingMethod,
		Fingerprint:     meta.Fingerprint,
		BuiltAt:         time.Now().UTC(),
	}
	if ix.store != nil {
		if err := ix.store.Save(ctx, info, records); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}
	}

	ix.mu.Lock()
	ix.info = info
	ix.records = records
	ix.loaded = true
	ix.mu.Unlock()

	if ix.logger != nil {
		ix.logger.Info("vector index built",
			zap.String("build_id", info.BuildID),
			zap.Int("rows", info.Rows),
			zap.Int("dimensions", info.Dimensions),
		)
	}
	return nil
}

// Load restores the index from its store and verifies row alignment.
func (ix *Index) Load(ctx context.Context) error {
	if ix.store == nil {
		return fmt.Errorf("%w: no store configured", ErrArtifactMissing)
	}
	info, records, err := ix.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := validate(info, records); err != nil {
		return fmt.Errorf("load %s: %w", ix.store.Location(), err)
	}

	ix.mu.Lock()
	ix.info = info
	ix.records = records
	ix.loaded = true
	ix.mu.Unlock()

	if ix.logger != nil {
		ix.logger.Info("vector index loaded",
			zap.String("location", ix.store.Location()),
			zap.String("build_id", info.BuildID),
			zap.Int("rows", info.Rows),
		)
	}
	return nil
}

func validate(info models.IndexInfo, records []Record) error {
	if info.Rows != len(records) {
		return fmt.Errorf("%w: metadata declares %d rows, found %d", ErrCorrupt, info.Rows, len(records))
	}
	if info.Rows == 0 {
		return fmt.Errorf("%w: index has no rows", ErrCorrupt)
	}
	for i, r := range records {
		if r.Row != i {
			return fmt.Errorf("%w: row %d stored at position %d", ErrCorrupt, r.Row, i)
		}
		if len(r.Vector) != info.Dimensions {
			return fmt.Errorf("%w: row %d has dimension %d, expected %d", ErrCorrupt, i, len(r.Vector), info.Dimensions)
		}
	}
	return nil
}

// Search returns the topK rows by descending inner product with query. Ties keep
// row order. topK larger than the corpus returns the whole corpus.
func (ix *Index) Search(ctx context.Context, query []float32, topK int) ([]models.RetrievalResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.loaded {
		return nil, ErrNotLoaded
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if len(query) != ix.info.Dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), ix.info.Dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		row   int
		score float64
	}
	scores := make([]scored, len(ix.records))
	for i, r := range ix.records {
		scores[i] = scored{row: i, score: InnerProduct(query, r.Vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	results := make([]models.RetrievalResult, topK)
	for i := 0; i < topK; i++ {
		r := ix.records[scores[i].row]
		results[i] = models.RetrievalResult{
			Row:    r.Row,
			Text:   r.Text,
			Score:  scores[i].score,
			CaseID: r.CaseID,
		}
	}
	return results, nil
}

// Loaded reports whether the index can serve searches.
func (ix *Index) Loaded() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loaded
}

// Size returns the number of rows.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// Info returns the metadata of the active index.
func (ix *Index) Info() models.IndexInfo {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.info
}

// Dimensions returns the vector dimension, or 0 before Build/Load.
func (ix *Index) Dimensions() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.info.Dimensions
}

// Records returns the active rows. Callers must not modify them.
func (ix *Index) Records() []Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.records
}

// Location returns where the index is persisted.
func (ix *Index) Location() string {
	if ix.store == nil {
		return ""
	}
	return ix.store.Location()
}

// Close closes the underlying store.
func (ix *Index) Close() error {
	if ix.store == nil {
		return nil
	}
	return ix.store.Close()
}
