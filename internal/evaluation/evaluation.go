// Package evaluation measures retrieval quality against a labelled question set.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hyperjump/mizan/internal/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultKs are the cut-offs reported when the caller does not choose.
var DefaultKs = []int{10, 20, 50}

// Retriever is the retrieval operation under evaluation.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, []float32, error)
}

// Metrics are the scores at one cut-off.
type Metrics struct {
	K      int     `json:"k" yaml:"k"`
	Recall float64 `json:"recall" yaml:"recall"`
	MRR    float64 `json:"mrr" yaml:"mrr"`
	Hit    float64 `json:"hit" yaml:"hit"`
}

// Report is the outcome of one evaluation run.
type Report struct {
	Questions int           `json:"questions" yaml:"questions"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Metrics   []Metrics     `json:"metrics" yaml:"metrics"`
	Took      time.Duration `json:"took" yaml:"took"`
}

// Option configures an evaluation run.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// EvaluateRetriever retrieves max(ks) passages per question and scores the rank of
// the first passage from the question's case. Each question has exactly one relevant
// case, so Recall@k and Hit@k coincide. Questions without a case id are skipped.
func EvaluateRetriever(ctx context.Context, qa []models.QAPair, r Retriever, ks []int, opts ...Option) (*Report, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	ks = normalizeKs(ks)
	maxK := ks[len(ks)-1]
	start := time.Now()

	hits := make([]int, len(ks))
	rr := make([]float64, len(ks))
	report := &Report{}
	for i, pair := range qa {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && i%100 == 0 {
			o.logger.Info("evaluation progress", zap.Int("done", i), zap.Int("total", len(qa)))
		}
		want := strings.TrimSpace(pair.CaseID)
		if want == "" || strings.TrimSpace(pair.Question) == "" {
			report.Skipped++
			continue
		}
		results, _, err := r.Retrieve(ctx, pair.Question, maxK)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		report.Questions++
		rank := FirstRelevantRank(results, want)
		if rank == 0 {
			continue
		}
		for j, k := range ks {
			if rank <= k {
				hits[j]++
				rr[j] += 1 / float64(rank)
			}
		}
	}

	for j, k := range ks {
		m := Metrics{K: k}
		if report.Questions > 0 {
			n := float64(report.Questions)
			m.Recall = float64(hits[j]) / n
			m.Hit = m.Recall
			m.MRR = rr[j] / n
		}
		report.Metrics = append(report.Metrics, m)
	}
	report.Took = time.Since(start)
	o.logger.Info("retriever evaluated",
		zap.Int("questions", report.Questions),
		zap.Int("skipped", report.Skipped),
		zap.Duration("took", report.Took))
	return report, nil
}

// FirstRelevantRank returns the 1-based rank of the first result from caseID, or 0.
func FirstRelevantRank(results []models.RetrievalResult, caseID string) int {
	for i, res := range results {
		if strings.TrimSpace(res.CaseID) == caseID {
			return i + 1
		}
	}
	return 0
}

func normalizeKs(ks []int) []int {
	out := make([]int, 0, len(ks))
	for _, k := range ks {
		if k > 0 && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultKs...)
	}
	slices.Sort(out)
	return out
}

// Write stores the report at path. The format follows the extension: .yaml or .yml
// for YAML, anything else for indented JSON.
func (r *Report) Write(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r)
	default:
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
