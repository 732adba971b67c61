package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/ar"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/normalize"
	"go.uber.org/zap"
)

const (
	batchSize    = 500
	maxFuzziness = 2
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("keyword index closed")

// BleveIndex implements PassageIndex using Bleve with the Arabic analyzer.
type BleveIndex struct {
	mu        sync.RWMutex
	rebuildMu sync.Mutex
	path      string
	index     bleve.Index
	logger    *zap.Logger
}

// Option configures a BleveIndex.
type Option func(*BleveIndex)

// WithLogger sets a logger for rebuild events.
func WithLogger(l *zap.Logger) Option {
	return func(b *BleveIndex) { b.logger = l }
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Arabic analyzer: orthographic normalization, stop words, light stemming, so
	// "المحكمة" and "محكمة" share a term.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = ar.AnalyzerName
	textFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	caseFieldMapping := bleve.NewKeywordFieldMapping()
	caseFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("case_id", caseFieldMapping)

	rowFieldMapping := bleve.NewNumericFieldMapping()
	rowFieldMapping.Index = false
	docMapping.AddFieldMappingsAt("row", rowFieldMapping)

	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = ar.AnalyzerName
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path keeps the
// index in memory.
func NewBleveIndex(path string, opts ...Option) (*BleveIndex, error) {
	b := &BleveIndex{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	index, err := b.open()
	if err != nil {
		return nil, err
	}
	b.index = index
	return b, nil
}

func (b *BleveIndex) open() (bleve.Index, error) {
	if b.path != "" {
		if _, err := os.Stat(b.path); err == nil {
			index, openErr := bleve.Open(b.path)
			if openErr != nil {
				return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
			}
			return index, nil
		}
	}
	return create(b.path)
}

// create makes an empty index at path, or in memory when path is empty.
func create(path string) (bleve.Index, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return index, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return index, nil
}

func (b *BleveIndex) stagingPath() string {
	if b.path == "" {
		return ""
	}
	return b.path + ".rebuild"
}

// Rebuild indexes docs into a fresh index and swaps it in once complete. On failure
// the previous index keeps serving searches.
func (b *BleveIndex) Rebuild(ctx context.Context, docs []Document) error {
	b.rebuildMu.Lock()
	defer b.rebuildMu.Unlock()

	b.mu.RLock()
	closed := b.index == nil
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	staging := b.stagingPath()
	if staging != "" {
		if err := os.RemoveAll(staging); err != nil {
			return fmt.Errorf("failed to clear staging index: %w", err)
		}
	}
	next, err := create(staging)
	if err != nil {
		return err
	}
	discard := func() {
		_ = next.Close()
		if staging != "" {
			_ = os.RemoveAll(staging)
		}
	}
	if err := fill(ctx, next, docs); err != nil {
		discard()
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		discard()
		return ErrClosed
	}
	if staging == "" {
		_ = b.index.Close()
		b.index = next
	} else if err := b.swap(next, staging); err != nil {
		return err
	}
	b.logger.Debug("keyword index rebuilt", zap.Int("passages", len(docs)), zap.String("path", b.path))
	return nil
}

// swap replaces the on-disk index with the staged one. Callers hold b.mu.
func (b *BleveIndex) swap(next bleve.Index, staging string) error {
	if err := next.Close(); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("failed to close staged Bleve index: %w", err)
	}
	if err := b.index.Close(); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("failed to close Bleve index: %w", err)
	}
	b.index = nil
	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("failed to remove Bleve index: %w", err)
	}
	if err := os.Rename(staging, b.path); err != nil {
		return fmt.Errorf("failed to move rebuilt Bleve index: %w", err)
	}
	index, err := bleve.Open(b.path)
	if err != nil {
		return fmt.Errorf("failed to open rebuilt Bleve index: %w", err)
	}
	b.index = index
	return nil
}

func fill(ctx context.Context, index bleve.Index, docs []Document) error {
	batch := index.NewBatch()
	for i, doc := range docs {
		doc.Text = normalize.Text(doc.Text)
		if err := batch.Index(strconv.Itoa(doc.Row), doc); err != nil {
			return fmt.Errorf("failed to index passage %d: %w", doc.Row, err)
		}
		if batch.Size() >= batchSize || i == len(docs)-1 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to flush keyword batch: %w", err)
			}
			batch.Reset()
		}
	}
	return ctx.Err()
}

// Search runs a normalized match query over passage text and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]models.KeywordHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, ErrClosed
	}
	query = normalize.Text(query)
	if query == "" || limit <= 0 {
		return []models.KeywordHit{}, nil
	}

	var o SearchOptions
	if opts != nil {
		o = *opts
	}
	q := buildQuery(query, o, b.analyze)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"case_id", "text"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]models.KeywordHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		row, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		caseID, _ := hit.Fields["case_id"].(string)
		text, _ := hit.Fields["text"].(string)
		out = append(out, models.KeywordHit{Row: row, CaseID: caseID, Text: text, Score: hit.Score})
	}
	return out, nil
}

// analyze returns the index-time terms of text, so fuzzy queries compare stems
// with stems.
func (b *BleveIndex) analyze(text string) []string {
	analyzer := b.index.Mapping().AnalyzerNamed(ar.AnalyzerName)
	if analyzer == nil {
		return strings.Fields(text)
	}
	var terms []string
	for _, tok := range analyzer.Analyze([]byte(text)) {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

func buildQuery(query string, o SearchOptions, analyze func(string) []string) blevequery.Query {
	var q blevequery.Query
	switch {
	case o.Phrase:
		pq := bleve.NewMatchPhraseQuery(query)
		pq.SetField("text")
		q = pq
	case o.Fuzziness > 0:
		q = buildFuzzyQuery(query, analyze(query), min(o.Fuzziness, maxFuzziness))
	default:
		mq := bleve.NewMatchQuery(query)
		mq.SetField("text")
		q = mq
	}
	if o.CaseID == "" {
		return q
	}
	cq := bleve.NewTermQuery(normalize.Text(o.CaseID))
	cq.SetField("case_id")
	return bleve.NewConjunctionQuery(q, cq)
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per analyzed term.
func buildFuzzyQuery(query string, terms []string, fuzziness int) blevequery.Query {
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("text")
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField("text")
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the total number of passages in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, ErrClosed
	}
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
