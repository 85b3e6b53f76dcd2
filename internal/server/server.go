// Package server provides the HTTP API for vecbucket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/vecbucket/internal/config"
	"github.com/hyperjump/vecbucket/internal/indexer"
	"github.com/hyperjump/vecbucket/internal/search"
	"github.com/hyperjump/vecbucket/pkg/utils"
)

// Server is the HTTP server for the vecbucket API.
type Server struct {
	engine  *search.Engine
	indexer *indexer.Indexer
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *search.Engine, idx *indexer.Indexer, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		engine:  engine,
		indexer: idx,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/upload", s.handleUpload)
	r.Post("/upload/bulk", s.handleUploadBulk)
	r.Get("/document/{doc_id}", s.handleGetDocument)
	r.Delete("/document/{doc_id}", s.handleDeleteDocument)
	r.Get("/documents", s.handleListDocuments)
	r.Post("/search", s.handleSearch)
	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start reconciles the index with the stored documents, then serves HTTP
// until the server stops. A Stop issued before the listener is bound makes
// Start return http.ErrServerClosed.
func (s *Server) Start(ctx context.Context) error {
	state, err := s.indexer.Rebuild(ctx)
	if err != nil {
		s.logger.Warn("startup index rebuild failed", zap.Error(err))
	} else {
		s.logger.Info("startup index rebuild complete", zap.Stringer("state", state))
	}

	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
