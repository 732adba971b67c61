// Package indexer splits legal cases into passages and builds the passage index.
package indexer

import (
	"strings"
	"unicode"

	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/normalize"
)

const (
	// DefaultChunkSize is the passage budget in tokens.
	DefaultChunkSize = 300
	// DefaultChunkOverlap is the token overlap between consecutive passages.
	DefaultChunkOverlap = 50
)

// DefaultSeparators are tried in order: paragraph, line, sentence endings (including
// the Arabic question mark and full stop), then clause separators.
var DefaultSeparators = []string{"\n\n", "\n", ".", "؟", "۔", "!", "?", ":", "؛", "،", "-"}

// TokenSplitter is the subset of embedding.Tokenizer the chunker needs.
type TokenSplitter interface {
	Tokens(text string) []string
}

// Chunker splits text into overlapping passages of at most chunkSize tokens,
// preferring natural boundaries over hard cuts.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	tokenizer    TokenSplitter
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithSeparators overrides the separator priority list.
func WithSeparators(seps []string) ChunkerOption {
	return func(c *Chunker) {
		if len(seps) > 0 {
			c.separators = seps
		}
	}
}

// NewChunker creates a chunker with the given size and overlap, measured with tokenizer.
func NewChunker(chunkSize, chunkOverlap int, tokenizer TokenSplitter, opts ...ChunkerOption) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	c := &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
		tokenizer:    tokenizer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chunker) length(s string) int {
	return len(c.tokenizer.Tokens(s))
}

// Split splits text into ordered passages.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, seps []string) []string {
	sep := ""
	var rest []string
	for i, s := range seps {
		if s != "" && strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}
	if sep == "" {
		if c.length(text) <= c.chunkSize {
			if t := strings.TrimSpace(text); t != "" {
				return []string{t}
			}
			return nil
		}
		return c.hardSplit(text)
	}

	var out, good []string
	for _, piece := range splitKeep(text, sep) {
		if c.length(piece) <= c.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		out = append(out, c.split(piece, rest)...)
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// splitKeep splits s after every occurrence of sep, keeping sep on the left piece,
// so that concatenating the pieces yields s.
func splitKeep(s, sep string) []string {
	parts := strings.SplitAfter(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge packs pieces into passages of at most chunkSize tokens. When a passage is
// emitted, leading pieces are dropped until at most chunkOverlap tokens remain to
// start the next passage.
func (c *Chunker) merge(pieces []string) []string {
	var docs, current []string
	var lengths []int
	total := 0
	emit := func() {
		if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
			docs = append(docs, doc)
		}
	}
	for _, p := range pieces {
		l := c.length(p)
		if total+l > c.chunkSize && len(current) > 0 {
			emit()
			for len(current) > 0 && (total > c.chunkOverlap || total+l > c.chunkSize) {
				total -= lengths[0]
				current, lengths = current[1:], lengths[1:]
			}
		}
		current = append(current, p)
		lengths = append(lengths, l)
		total += l
	}
	if len(current) > 0 {
		emit()
	}
	return docs
}

// hardSplit cuts text into word windows of at most chunkSize tokens with a step that
// keeps up to chunkOverlap tokens of overlap. Words longer than the budget are
// broken at token boundaries. Every passage is a substring of text.
func (c *Chunker) hardSplit(text string) []string {
	type unit struct{ start, end, tokens int }
	var units []unit
	for _, w := range fieldSpans(text) {
		word := text[w[0]:w[1]]
		l := c.length(word)
		if l <= c.chunkSize {
			if l > 0 {
				units = append(units, unit{w[0], w[1], l})
			}
			continue
		}
		pos := 0
		for _, tok := range c.tokenizer.Tokens(word) {
			off := strings.Index(word[pos:], tok)
			if off < 0 {
				continue
			}
			start := w[0] + pos + off
			units = append(units, unit{start, start + len(tok), 1})
			pos += off + len(tok)
		}
	}

	var out []string
	for i := 0; i < len(units); {
		total, j := 0, i
		for j < len(units) && total+units[j].tokens <= c.chunkSize {
			total += units[j].tokens
			j++
		}
		if j == i {
			j = i + 1
		}
		out = append(out, text[units[i].start:units[j-1].end])
		if j >= len(units) {
			break
		}
		k, overlap := j, 0
		for k > i+1 && overlap+units[k-1].tokens <= c.chunkOverlap {
			overlap += units[k-1].tokens
			k--
		}
		i = k
	}
	return out
}

// fieldSpans returns the byte offsets of the whitespace-separated fields of s.
func fieldSpans(s string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range s {
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
		spans = append(spans, [2]int{start, len(s)})
	}
	return spans
}

// ChunkRecord returns the passages of one case. The case is never merged with another.
func (c *Chunker) ChunkRecord(rec models.CaseRecord) []models.Passage {
	caseID := normalize.Text(rec.CaseID)
	texts := c.Split(CombineRecord(rec))
	passages := make([]models.Passage, len(texts))
	for i, text := range texts {
		passages[i] = models.Passage{
			CaseID: caseID,
			Text:   text,
			Index:  i,
			Tokens: c.length(text),
		}
	}
	return passages
}

// ChunkRecords flattens the passages of all cases in input order.
func (c *Chunker) ChunkRecords(cases []models.CaseRecord) []models.Passage {
	var out []models.Passage
	for _, rec := range cases {
		out = append(out, c.ChunkRecord(rec)...)
	}
	return out
}

// Flatten returns parallel passage-text and case-id slices.
func Flatten(passages []models.Passage) (texts, caseIDs []string) {
	texts = make([]string, len(passages))
	caseIDs = make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
		caseIDs[i] = p.CaseID
	}
	return texts, caseIDs
}
