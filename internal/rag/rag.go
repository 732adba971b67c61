// Package rag runs the question answering pipeline: validity gate, retrieval,
// relevance gate, generation.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/mizan/internal/generator"
	"github.com/hyperjump/mizan/internal/models"
	"go.uber.org/zap"
)

// Status is the terminal state of a question.
type Status string

const (
	StatusAnswered           Status = "ANSWERED"
	StatusRejectedScope      Status = "REJECTED_SCOPE"
	StatusRejectedNoEvidence Status = "REJECTED_NO_EVIDENCE"
)

const (
	// DefaultTopK is the number of passages used as context.
	DefaultTopK = 3
	// DefaultThreshold is the minimum top-1 similarity required to answer.
	DefaultThreshold = 0.6
)

// Retriever returns the passages nearest to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, []float32, error)
}

// Answer is the outcome of one question.
type Answer struct {
	Status Status
	Text   string
	// Kind is set when the question reached generation.
	Kind          generator.PromptKind
	ArticlesFound *bool
	Sources       []models.RetrievalResult
	Took          time.Duration
}

// Response converts the answer to its API form.
func (a *Answer) Response(question string) models.AskResponse {
	return models.AskResponse{
		Question:      question,
		Status:        string(a.Status),
		Answer:        a.Text,
		Kind:          string(a.Kind),
		ArticlesFound: a.ArticlesFound,
		Sources:       a.Sources,
		QueryTime:     a.Took.Milliseconds(),
	}
}

// Orchestrator wires the retriever and the generator.
type Orchestrator struct {
	retriever Retriever
	generator *generator.Generator
	topK      int
	threshold float64
	logger    *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets the number of context passages.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithThreshold sets the relevance threshold.
func WithThreshold(t float64) Option {
	return func(o *Orchestrator) { o.threshold = t }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator.
func New(r Retriever, g *generator.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		retriever: r,
		generator: g,
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TopK returns the configured number of context passages.
func (o *Orchestrator) TopK() int { return o.topK }

// Threshold returns the configured relevance threshold.
func (o *Orchestrator) Threshold() float64 { return o.threshold }

// Answer runs the pipeline for q. Rejections are returned as answers, not errors.
func (o *Orchestrator) Answer(ctx context.Context, q string) (*Answer, error) {
	start := time.Now()
	msgs := o.generator.Rules().Messages

	if !o.generator.IsLegalArabicQuestion(q) {
		o.logger.Info("question rejected", zap.String("status", string(StatusRejectedScope)))
		return &Answer{Status: StatusRejectedScope, Text: msgs.OutOfScope, Took: time.Since(start)}, nil
	}

	results, _, err := o.retriever.Retrieve(ctx, q, o.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(results) == 0 || results[0].Score < o.threshold {
		top := 0.0
		if len(results) > 0 {
			top = results[0].Score
		}
		o.logger.Info("question rejected",
			zap.String("status", string(StatusRejectedNoEvidence)),
			zap.Int("results", len(results)),
			zap.Float64("top_score", top),
			zap.Float64("threshold", o.threshold),
		)
		return &Answer{
			Status:  StatusRejectedNoEvidence,
			Text:    msgs.InsufficientInfo,
			Sources: results,
			Took:    time.Since(start),
		}, nil
	}

	res, err := o.generator.Answer(ctx, q, BuildContext(results))
	if err != nil {
		return nil, err
	}
	ans := &Answer{
		Status:        StatusAnswered,
		Text:          res.Text,
		Kind:          res.Kind,
		ArticlesFound: res.ArticlesFound,
		Sources:       results,
		Took:          time.Since(start),
	}
	o.logger.Info("question answered",
		zap.String("kind", string(res.Kind)),
		zap.Float64("top_score", results[0].Score),
		zap.Duration("took", ans.Took),
	)
	return ans, nil
}

// GenerateAnswer returns only the answer text for q.
func (o *Orchestrator) GenerateAnswer(ctx context.Context, q string) (string, error) {
	ans, err := o.Answer(ctx, q)
	if err != nil {
		return "", err
	}
	return ans.Text, nil
}

// BuildContext joins passage texts with newlines in the given (descending score) order.
func BuildContext(results []models.RetrievalResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n")
}
