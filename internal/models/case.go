// Package models defines core data structures for legal cases, passages, questions, and answers.
package models

import "time"

// CaseRecord is one row of the legal-case table.
type CaseRecord struct {
	CaseID      string `json:"case_id" db:"case_id"`
	Title       string `json:"title" db:"title"`
	Keywords    string `json:"keywords" db:"keywords"`
	Description string `json:"description" db:"description"`
}

// QAPair is one row of the question/answer evaluation table.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context"`
	CaseID   string `json:"case_id"`
}

// Passage is a normalized, token-bounded fragment of a single case record.
type Passage struct {
	CaseID string `json:"case_id" db:"case_id"`
	Text   string `json:"text" db:"text"`
	// Index is the position of the passage within its case.
	Index  int `json:"index" db:"chunk_index"`
	Tokens int `json:"tokens" db:"-"`
}

// IndexInfo describes a built vector index.
type IndexInfo struct {
	BuildID         string    `json:"build_id" yaml:"build_id"`
	Rows            int       `json:"rows" yaml:"rows"`
	Dimensions      int       `json:"dimensions" yaml:"dimensions"`
	EmbeddingMethod string    `json:"embedding_method" yaml:"embedding_method"`
	Fingerprint     string    `json:"dataset_fingerprint" yaml:"dataset_fingerprint"`
	BuiltAt         time.Time `json:"built_at" yaml:"built_at"`
}
