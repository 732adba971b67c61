package generator

import "strings"

// PromptKind selects the template and post-processing path.
type PromptKind string

const (
	KindArticle PromptKind = "article"
	KindGeneral PromptKind = "general"
)

// Prompt is a rendered prompt and its generation budget.
type Prompt struct {
	Kind         PromptKind
	Text         string
	MaxNewTokens int
}

// BuildPrompt renders the template for q's kind with the retrieved context.
func (r *Rules) BuildPrompt(q, context string) Prompt {
	kind, tmpl, budget := KindGeneral, r.Templates.General, r.MaxNewTokens.General
	if r.IsArticleQuestion(q) {
		kind, tmpl, budget = KindArticle, r.Templates.Article, r.MaxNewTokens.Article
	}
	text := strings.NewReplacer(PlaceholderQuestion, q, PlaceholderContext, context).Replace(tmpl)
	return Prompt{Kind: kind, Text: text, MaxNewTokens: budget}
}
