package embedding

import (
	"strings"
	"unicode"
)

const (
	clsTokenID int64 = 101
	sepTokenID int64 = 102
	vocabSize        = 30000
)

// Tokenizer splits text into model tokens. Tokens is used for length budgeting
// (chunking); Encode produces BERT-style model inputs.
type Tokenizer interface {
	Tokens(text string) []string
	Encode(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer pre-tokenizes on whitespace and punctuation and maps tokens to
// hash-based ids. It is used by the hash encoder and as the budget tokenizer for
// remote backends whose tokenizers are not available locally.
type SimpleTokenizer struct{}

// Count returns the number of tokens in text.
func (t *SimpleTokenizer) Count(text string) int {
	return len(t.Tokens(text))
}

// Tokens returns word runs (letters, digits, marks) and single punctuation runes.
func (t *SimpleTokenizer) Tokens(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			word.WriteRune(r)
		default:
			flush()
			tokens = append(tokens, string(r))
		}
	}
	flush()
	return tokens
}

// Encode frames tokens with [CLS]/[SEP] and pads to maxTokens.
func (t *SimpleTokenizer) Encode(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 512
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1

	pos := 1
	for _, tok := range t.Tokens(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(tok)%(vocabSize-1000)) + 1000
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sepTokenID
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text on Unicode whitespace.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// HashString returns a deterministic non-negative hash for use as a token id.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -(h + 1)
	}
	return h
}
