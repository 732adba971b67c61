package generator

import (
	"strings"
	"unicode"
)

// Extraction is the result of article extraction. Found is false when the text held
// no article reference; Text is labelled either way.
type Extraction struct {
	Items []string
	Found bool
	Text  string
}

// ExtractArticles finds "المادة/المواد <numbers> [من قانون ...]" references in text,
// rewrites range dashes as the range word, and formats them under the header.
func (r *Rules) ExtractArticles(text string) Extraction {
	var items []string
	seen := map[string]bool{}
	for _, m := range r.articleRe.FindAllStringSubmatch(text, -1) {
		articles := strings.Join(strings.Fields(r.rangeReplacer.Replace(m[1])), " ")
		if articles == "" {
			continue
		}
		law := ""
		if len(m) > 2 {
			law = strings.Join(strings.Fields(m[2]), " ")
		}
		item := strings.TrimSpace(r.ArticlePrefix + " " + articles + " " + law)
		if seen[item] {
			continue
		}
		seen[item] = true
		items = append(items, item)
	}

	var b strings.Builder
	b.WriteString(r.Messages.ArticlesHeader)
	if len(items) == 0 {
		b.WriteString("\n")
		b.WriteString(r.Messages.NoArticles)
		return Extraction{Found: false, Text: b.String()}
	}
	for _, item := range items {
		b.WriteString("\n")
		b.WriteString(r.Messages.ArticleBullet)
		b.WriteString(item)
	}
	return Extraction{Items: items, Found: true, Text: b.String()}
}

// CleanAnswer removes a verbatim echo of the question, the answer marker word, and one
// leading colon from a general answer.
func (r *Rules) CleanAnswer(answer, question string) string {
	if question != "" {
		answer = strings.ReplaceAll(answer, question, "")
	}
	answer = strings.TrimSpace(answer)
	if r.AnswerMarker != "" {
		answer = strings.TrimSpace(strings.ReplaceAll(answer, r.AnswerMarker, ""))
	}
	if strings.HasPrefix(answer, ":") {
		answer = strings.TrimSpace(answer[1:])
	}
	return answer
}

// SuppressRepeatedNgrams drops every word that would complete an n-word sequence
// already present earlier in text. Whitespace around kept words is preserved.
func SuppressRepeatedNgrams(text string, n int) string {
	if n <= 0 {
		return text
	}
	var out strings.Builder
	seen := make(map[string]bool)
	window := make([]string, 0, n)
	pos := 0
	for _, sp := range wordSpans(text) {
		word := text[sp[0]:sp[1]]
		if len(window) == n-1 {
			key := strings.Join(append(window[:n-1:n-1], word), "\x00")
			if seen[key] {
				pos = sp[1]
				continue
			}
			seen[key] = true
		}
		out.WriteString(text[pos:sp[1]])
		pos = sp[1]
		window = append(window, word)
		if len(window) > n-1 {
			window = window[1:]
		}
	}
	out.WriteString(text[pos:])
	return out.String()
}

// wordSpans returns the byte offsets of whitespace-separated words.
func wordSpans(text string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, [2]int{start, i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}
