// Package keyword provides keyword lookup over indexed passages.
package keyword

import (
	"context"

	"github.com/hyperjump/mizan/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Fuzziness is the maximum edit distance per term (0 disables fuzzy matching, max 2).
	Fuzziness int
	// Phrase requires the query terms to appear as a phrase.
	Phrase bool
	// CaseID restricts hits to passages of one case.
	CaseID string
}

// Document is one passage row as stored in the keyword index.
type Document struct {
	Row    int    `json:"row"`
	CaseID string `json:"case_id"`
	Text   string `json:"text"`
}

// PassageIndex defines keyword search over passages. Rebuild replaces all documents.
type PassageIndex interface {
	Rebuild(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]models.KeywordHit, error)
	DocCount() (uint64, error)
	Close() error
}
