// Package server provides the HTTP API for Mizan.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/mizan/internal/config"
	"github.com/hyperjump/mizan/internal/keyword"
	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/rag"
	"github.com/hyperjump/mizan/internal/storage"
	"go.uber.org/zap"
)

// Asker answers questions.
type Asker interface {
	Answer(ctx context.Context, q string) (*rag.Answer, error)
}

// PassageRetriever returns the passages nearest to a query.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, []float32, error)
}

// IndexStatus reports on the loaded vector index.
type IndexStatus interface {
	Loaded() bool
	Size() int
	Info() models.IndexInfo
}

// Server is the HTTP server for the Mizan API.
type Server struct {
	asker     Asker
	retriever PassageRetriever
	index     IndexStatus
	keyword   keyword.PassageIndex
	storage   storage.Storage
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. kw may be nil when the
// keyword index is disabled.
func NewServer(
	asker Asker,
	retriever PassageRetriever,
	index IndexStatus,
	kw keyword.PassageIndex,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		asker:     asker,
		retriever: retriever,
		index:     index,
		keyword:   kw,
		storage:   store,
		config:    cfg,
		logger:    logger,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/retrieve", s.handleRetrieve)
		r.Get("/passages/search", s.handleKeywordSearch)
		r.Get("/cases", s.handleListCases)
		r.Get("/cases/{id}", s.handleGetCase)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
