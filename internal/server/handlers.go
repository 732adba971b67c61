package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/mizan/internal/keyword"
	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/storage"
	"github.com/hyperjump/mizan/internal/vector"
	"go.uber.org/zap"
)

const (
	defaultKeywordLimit = 10
	maxKeywordLimit     = 100
	defaultCaseLimit    = 50
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ask request", zap.Int("question_runes", len([]rune(req.Question))))
	ans, err := s.asker.Answer(r.Context(), req.Question)
	if err != nil {
		s.respondPipelineError(w, "ask", err)
		return
	}
	s.respondJSON(w, http.StatusOK, ans.Response(req.Question))
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q := models.RetrieveQuery{Query: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		q.TopK = n
	}
	if err := q.Validate(s.config.Retrieval.TopK, s.config.Retrieval.MaxTopK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	results, _, err := s.retriever.Retrieve(r.Context(), q.Query, q.TopK)
	if err != nil {
		s.respondPipelineError(w, "retrieve", err)
		return
	}
	if results == nil {
		results = []models.RetrievalResult{}
	}
	s.respondJSON(w, http.StatusOK, models.RetrieveResponse{
		Query:     q.Query,
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	if s.keyword == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword index not enabled")
		return
	}
	params := r.URL.Query()
	query := params.Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := intParam(params.Get("limit"), defaultKeywordLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	limit = min(max(limit, 1), maxKeywordLimit)
	fuzziness, err := intParam(params.Get("fuzziness"), 0)
	if err != nil || fuzziness < 0 || fuzziness > 2 {
		s.respondError(w, http.StatusBadRequest, "fuzziness must be 0, 1 or 2")
		return
	}
	opts := &keyword.SearchOptions{
		Fuzziness: fuzziness,
		Phrase:    params.Get("phrase") == "true",
		CaseID:    params.Get("case_id"),
	}
	start := time.Now()
	hits, err := s.keyword.Search(r.Context(), query, limit, opts)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []models.KeywordHit{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":         query,
		"hits":          hits,
		"query_time_ms": time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r.URL.Query().Get("offset"), 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), defaultCaseLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	cases, err := s.storage.ListCases(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list cases failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cases == nil {
		cases = []*models.CaseRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"cases": cases, "offset": offset, "limit": limit})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.storage.GetCase(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "case not found")
		return
	}
	if err != nil {
		s.logger.Error("get case failed", zap.String("case_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseCount, err := s.storage.CountCases(ctx)
	if err != nil {
		s.logger.Error("status: count cases failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	passageCount, err := s.storage.CountPassages(ctx)
	if err != nil {
		s.logger.Error("status: count passages failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"cases":        caseCount,
		"passages":     passageCount,
		"index_loaded": s.index.Loaded(),
		"index_size":   s.index.Size(),
	}
	if s.index.Loaded() {
		resp["index"] = s.index.Info()
	}
	if s.keyword != nil {
		if n, err := s.keyword.DocCount(); err == nil {
			resp["keyword_documents"] = n
		}
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"embedding_backend":  cfg.Embedding.Backend,
		"embedding_method":   cfg.Retrieval.EmbeddingMethod,
		"generator_backend":  cfg.Generator.Backend,
		"index_type":         cfg.Storage.IndexType,
		"chunk_size":         cfg.Chunking.ChunkSize,
		"chunk_overlap":      cfg.Chunking.ChunkOverlap,
		"top_k":              cfg.Retrieval.TopK,
		"threshold":          cfg.Retrieval.Threshold,
		"index_path":         cfg.Storage.IndexPath,
		"database_path":      cfg.Storage.DatabasePath,
		"keyword_index_path": cfg.Storage.KeywordIndexPath,
	}
	if diskBytes, err := storage.DiskUsageBytes(
		cfg.Storage.IndexPath,
		cfg.Storage.DatabasePath,
		cfg.Storage.KeywordIndexPath,
	); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondPipelineError maps retrieval and generation failures to a status code.
func (s *Server) respondPipelineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, vector.ErrNotLoaded):
		s.respondError(w, http.StatusServiceUnavailable, "index not built")
	case errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
