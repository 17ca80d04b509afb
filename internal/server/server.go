// Package server provides the HTTP API for semsearch.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/config"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/search"
)

// Version is reported by GET /.
const Version = "1.0.0"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Service is the orchestrator surface the handlers need. *search.Orchestrator implements it.
type Service interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error)
	AddDocumentWithEmbedding(ctx context.Context, title, content string, metadata models.Metadata) (*models.Document, error)
	UpdateDocumentWithEmbedding(ctx context.Context, id int64, patch models.DocumentPatch) (*models.Document, error)
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	ListDocuments(ctx context.Context, page, pageSize int) (*models.Page, error)
	DeleteDocument(ctx context.Context, id int64) error
	CountDocuments(ctx context.Context) (int64, error)
	Status(ctx context.Context) (*search.Status, error)
}

// Server is the HTTP server for the semsearch API.
type Server struct {
	svc    Service
	config *config.Config
	logger *zap.Logger
	mcp    http.Handler
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMCPHandler mounts h at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(svc Service, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.Compress(5))

		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			r.Get("/search", s.handleSearchGet)
			r.Post("/search", s.handleSearchPost)

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", s.handleListDocuments)
				r.Post("/", s.handleCreateDocument)
				r.Get("/count", s.handleCountDocuments)
				r.Get("/{id}", s.handleGetDocument)
				r.Put("/{id}", s.handleUpdateDocument)
				r.Delete("/{id}", s.handleDeleteDocument)
			})
		})
	})

	// MCP sessions stream; they stay outside the request timeout and compression.
	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
		r.Handle("/mcp/*", s.mcp)
	}

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.Bool("mcp", s.mcp != nil))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
