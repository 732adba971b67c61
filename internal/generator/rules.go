// Package generator turns retrieved legal context into an answer: it classifies the
// question, builds the prompt, drives the generation model, and post-processes the
// output. Every language-specific table lives in Rules.
package generator

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/mizan/internal/normalize"
	"gopkg.in/yaml.v3"
)

// Template placeholders.
const (
	PlaceholderQuestion = "{question}"
	PlaceholderContext  = "{context}"
)

// Templates are the prompt templates per question kind.
type Templates struct {
	Article string `yaml:"article"`
	General string `yaml:"general"`
}

// TokenBudgets are the generation lengths per question kind.
type TokenBudgets struct {
	Article int `yaml:"article"`
	General int `yaml:"general"`
}

// Messages are the fixed user-facing texts.
type Messages struct {
	OutOfScope       string `yaml:"out_of_scope"`
	InsufficientInfo string `yaml:"insufficient_info"`
	ArticlesHeader   string `yaml:"articles_header"`
	NoArticles       string `yaml:"no_articles"`
	ArticleBullet    string `yaml:"article_bullet"`
}

// Rules are the lookup tables consulted by the generator.
type Rules struct {
	LegalKeywords  []string     `yaml:"legal_keywords"`
	ArticlePhrases []string     `yaml:"article_phrases"`
	ArabicRatio    float64      `yaml:"arabic_ratio"`
	ArticlePattern string       `yaml:"article_pattern"`
	ArticlePrefix  string       `yaml:"article_prefix"`
	RangeDashes    []string     `yaml:"range_dashes"`
	RangeWord      string       `yaml:"range_word"`
	AnswerMarker   string       `yaml:"answer_marker"`
	Templates      Templates    `yaml:"templates"`
	MaxNewTokens   TokenBudgets `yaml:"max_new_tokens"`
	Messages       Messages     `yaml:"messages"`
	// ExtractFromPrompt makes article extraction read the prompt followed by the
	// continuation, the full sequence a causal model decodes, so articles cited in
	// the retrieved context are found even when the model does not repeat them.
	ExtractFromPrompt bool `yaml:"extract_from_prompt"`

	articleRe     *regexp.Regexp
	keywordsNorm  []string
	phrasesNorm   []string
	rangeReplacer *strings.Replacer
}

// DefaultRules returns the Arabic legal rule tables.
func DefaultRules() *Rules {
	r := &Rules{
		LegalKeywords: []string{
			"قررت", "القضية", "قانون", "محكمة", "عقوبة", "عقد",
			"دعوى", "حكم", "مدني", "المواد",
		},
		ArticlePhrases: []string{
			"ما هي المواد", "ما المواد", "المواد القانونية", "أي مواد",
			"ما المادة", "ما هي المادة", "النص القانوني",
		},
		ArabicRatio:    0.5,
		ArticlePattern: `(?:المادة|المواد)\s+([\d٠-٩\sو\-–—إلى]+)\s*(?:من\s+(قانون\s+[^\nو\.]*))?`,
		ArticlePrefix:  "المواد",
		RangeDashes:    []string{"-", "–", "—"},
		RangeWord:      "إلى",
		AnswerMarker:   "الجواب",
		Templates: Templates{
			Article: "المعرفة التالية مستخلصة من قضايا قانونية:\n{context}\n\n" +
				"استناداً إليها، ما هي **جميع المواد القانونية** التي يجب استخدامها لحل القضية التالية:\n" +
				"{question}\n\n" +
				"استخرج المواد القانونية الحقيقية التي وردت في النص، ولا تكرر أمثلة وهمية.\n" +
				"الجواب:",
			General: "{question}\n الجواب:\n{context}",
		},
		MaxNewTokens:      TokenBudgets{Article: 100, General: 250},
		ExtractFromPrompt: true,
		Messages: Messages{
			OutOfScope:       "❌ عذراً، لا يمكنني الإجابة على هذا السؤال لأنه خارج النطاق القانوني أو ليس مكتوباً بالللغة العربية القانونية.",
			InsufficientInfo: "❌ عذراً، لا أمتلك معلومات كافية للإجابة عن هذا السؤال.",
			ArticlesHeader:   "✅ المواد القانونية المستخرجة:",
			NoArticles:       "لم يتم العثور على مواد قانونية في النص المولد.",
			ArticleBullet:    "• ",
		},
	}
	if err := r.compile(); err != nil {
		panic(fmt.Sprintf("default rules: %v", err))
	}
	return r
}

// LoadRules reads YAML rule tables from path on top of DefaultRules, so a file may
// override only some tables.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	r := DefaultRules()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := r.compile(); err != nil {
		return nil, fmt.Errorf("invalid rules %s: %w", path, err)
	}
	return r, nil
}

func (r *Rules) compile() error {
	if r.ArabicRatio < 0 || r.ArabicRatio >= 1 {
		return fmt.Errorf("arabic_ratio must be in [0, 1), got %v", r.ArabicRatio)
	}
	if len(r.LegalKeywords) == 0 {
		return errors.New("legal_keywords must not be empty")
	}
	if !strings.Contains(r.Templates.Article, PlaceholderQuestion) || !strings.Contains(r.Templates.General, PlaceholderQuestion) {
		return fmt.Errorf("templates must contain %s", PlaceholderQuestion)
	}
	if r.MaxNewTokens.Article <= 0 || r.MaxNewTokens.General <= 0 {
		return errors.New("max_new_tokens must be positive")
	}
	re, err := regexp.Compile(r.ArticlePattern)
	if err != nil {
		return fmt.Errorf("article_pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return errors.New("article_pattern needs a capture group for the article numbers")
	}
	r.articleRe = re
	r.keywordsNorm = normalizeAll(r.LegalKeywords)
	r.phrasesNorm = normalizeAll(r.ArticlePhrases)
	pairs := make([]string, 0, 2*len(r.RangeDashes))
	for _, d := range r.RangeDashes {
		pairs = append(pairs, d, " "+r.RangeWord+" ")
	}
	r.rangeReplacer = strings.NewReplacer(pairs...)
	return nil
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := normalize.Text(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ArabicShare returns the share of runes of text in the Arabic block U+0600–U+06FF.
func ArabicShare(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	arabic := 0
	for _, r := range text {
		if r >= 0x0600 && r <= 0x06FF {
			arabic++
		}
	}
	return float64(arabic) / float64(total)
}

// IsLegalArabicQuestion reports whether q is non-blank, mostly Arabic, and mentions a
// legal keyword.
func (r *Rules) IsLegalArabicQuestion(q string) bool {
	if strings.TrimSpace(q) == "" {
		return false
	}
	if ArabicShare(q) <= r.ArabicRatio {
		return false
	}
	return containsAny(normalize.Text(q), r.keywordsNorm)
}

// IsArticleQuestion reports whether q asks for the applicable law articles.
func (r *Rules) IsArticleQuestion(q string) bool {
	return containsAny(normalize.Text(q), r.phrasesNorm)
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
