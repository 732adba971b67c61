package generator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Default decoding parameters: deterministic beam search with repeated-bigram
// suppression.
const (
	DefaultNumBeams          = 4
	DefaultNoRepeatNgramSize = 2
)

// Params are the decoding parameters passed to a Model.
type Params struct {
	MaxNewTokens      int
	NumBeams          int
	DoSample          bool
	NoRepeatNgramSize int
	PadToken          string
}

// Model is a causal generation model. Generate returns the continuation of prompt.
type Model interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// SpecialTokens is implemented by models that expose their tokenizer's special tokens.
type SpecialTokens interface {
	PadToken() string
	EOSToken() string
}

// Result is a post-processed answer.
type Result struct {
	Kind PromptKind
	Text string
	// ArticlesFound is set for article answers only.
	ArticlesFound *bool
	// Raw is the model output before post-processing.
	Raw string
}

// Generator drives a Model with the rule tables.
type Generator struct {
	model  Model
	rules  *Rules
	params Params
	logger *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithNumBeams sets the beam width.
func WithNumBeams(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.params.NumBeams = n
		}
	}
}

// WithNoRepeatNgramSize sets the repeated n-gram size; 0 disables suppression.
func WithNoRepeatNgramSize(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.params.NoRepeatNgramSize = n
		}
	}
}

// WithPadToken sets the padding token. When unset, the model's pad token is used,
// falling back to its end-of-sequence token.
func WithPadToken(tok string) Option {
	return func(g *Generator) { g.params.PadToken = tok }
}

// New creates a generator. A nil rules uses DefaultRules.
func New(model Model, rules *Rules, opts ...Option) *Generator {
	if rules == nil {
		rules = DefaultRules()
	}
	g := &Generator{
		model: model,
		rules: rules,
		params: Params{
			NumBeams:          DefaultNumBeams,
			NoRepeatNgramSize: DefaultNoRepeatNgramSize,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.params.PadToken == "" {
		if st, ok := model.(SpecialTokens); ok {
			g.params.PadToken = st.PadToken()
			if g.params.PadToken == "" {
				g.params.PadToken = st.EOSToken()
			}
		}
	}
	return g
}

// Rules returns the rule tables.
func (g *Generator) Rules() *Rules { return g.rules }

// Params returns the decoding parameters without a length budget.
func (g *Generator) Params() Params { return g.params }

// IsLegalArabicQuestion reports whether q passes the validity gate.
func (g *Generator) IsLegalArabicQuestion(q string) bool { return g.rules.IsLegalArabicQuestion(q) }

// IsArticleQuestion reports whether q asks for law articles.
func (g *Generator) IsArticleQuestion(q string) bool { return g.rules.IsArticleQuestion(q) }

// BuildPrompt renders the prompt for q.
func (g *Generator) BuildPrompt(q, context string) Prompt { return g.rules.BuildPrompt(q, context) }

// ExtractArticles extracts article references from text.
func (g *Generator) ExtractArticles(text string) Extraction { return g.rules.ExtractArticles(text) }

// CleanAnswer post-processes a general answer.
func (g *Generator) CleanAnswer(answer, question string) string {
	return g.rules.CleanAnswer(answer, question)
}

// Generate runs the model with deterministic decoding and maxNewTokens.
func (g *Generator) Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error) {
	params := g.params
	params.MaxNewTokens = maxNewTokens
	params.DoSample = false
	out, err := g.model.Generate(ctx, prompt, params)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return SuppressRepeatedNgrams(out, params.NoRepeatNgramSize), nil
}

// Answer builds the prompt for q over context, generates, and post-processes.
func (g *Generator) Answer(ctx context.Context, q, context string) (*Result, error) {
	prompt := g.BuildPrompt(q, context)
	raw, err := g.Generate(ctx, prompt.Text, prompt.MaxNewTokens)
	if err != nil {
		return nil, err
	}
	res := &Result{Kind: prompt.Kind, Raw: raw}
	if prompt.Kind == KindArticle {
		source := raw
		if g.rules.ExtractFromPrompt {
			source = prompt.Text + raw
		}
		ex := g.ExtractArticles(source)
		found := ex.Found
		res.Text, res.ArticlesFound = ex.Text, &found
		g.logger.Debug("articles extracted", zap.Int("count", len(ex.Items)))
		return res, nil
	}
	res.Text = g.CleanAnswer(raw, q)
	if strings.TrimSpace(res.Text) == "" {
		res.Text = g.rules.Messages.InsufficientInfo
	}
	return res, nil
}
