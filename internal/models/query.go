package models

import "fmt"

// AskRequest is a question submitted to the answering pipeline.
type AskRequest struct {
	Question string `json:"question"`
}

// Validate ensures the question is present.
func (r *AskRequest) Validate() error {
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	return nil
}

// RetrieveQuery is a raw passage retrieval request.
type RetrieveQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate ensures the query is present and clamps TopK into [1, maxTopK].
func (q *RetrieveQuery) Validate(defaultTopK, maxTopK int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return nil
}
