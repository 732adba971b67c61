package models

// RetrievalResult is a single retrieved passage with its similarity to the query.
type RetrievalResult struct {
	Row    int     `json:"row"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	CaseID string  `json:"case_id"`
}

// RetrieveResponse is the response for a retrieval request.
type RetrieveResponse struct {
	Query     string            `json:"query"`
	Results   []RetrievalResult `json:"results"`
	QueryTime int64             `json:"query_time_ms"`
}

// AskResponse is the response for a question.
type AskResponse struct {
	Question string `json:"question"`
	// Status is one of ANSWERED, REJECTED_SCOPE, REJECTED_NO_EVIDENCE.
	Status string `json:"status"`
	Answer string `json:"answer"`
	// Kind is "article" or "general" when the question reached generation.
	Kind          string            `json:"kind,omitempty"`
	ArticlesFound *bool             `json:"articles_found,omitempty"`
	Sources       []RetrievalResult `json:"sources,omitempty"`
	QueryTime     int64             `json:"query_time_ms"`
}

// KeywordHit is a passage matched by the keyword side index.
type KeywordHit struct {
	Row    int     `json:"row"`
	CaseID string  `json:"case_id"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}
