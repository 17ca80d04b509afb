package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
)

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseSearchQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.search(w, r, q)
}

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseSearchBody(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.search(w, r, q)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, q models.SearchQuery) {
	s.logger.Debug("search request",
		zap.String("query", q.Query),
		zap.Float64("threshold", q.Threshold),
		zap.Int("max_results", q.MaxResults))
	resp, err := s.svc.Search(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Data: resp.Results, Meta: resp.Meta})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q, "page", 1)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	pageSize, err := intParam(q, "pageSize", models.DefaultPageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.svc.ListDocuments(r.Context(), page, pageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, result, "")
}

func (s *Server) handleCountDocuments(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.CountDocuments(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, map[string]int64{"count": count}, "")
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	doc, err := s.svc.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, doc, "")
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := decodeBody(w, r, &input); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := input.Validate(); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Debug("create document request", zap.String("title", input.Title))
	doc, err := s.svc.AddDocumentWithEmbedding(r.Context(), input.Title, input.Content, input.Metadata)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, doc, "Document created successfully")
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var patch models.DocumentPatch
	if err := decodeBody(w, r, &patch); err != nil {
		s.respondError(w, r, err)
		return
	}
	if patch.IsEmpty() {
		s.respondError(w, r, apperr.Validation("update document",
			"At least one field (title, content, or metadata) must be provided for update"))
		return
	}
	doc, err := s.svc.UpdateDocumentWithEmbedding(r.Context(), id, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, doc, "Document updated successfully")
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Debug("delete document request", zap.Int64("id", id))
	if err := s.svc.DeleteDocument(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Message: "Document deleted successfully"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	now := time.Now().UTC().Format(time.RFC3339)
	if err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, map[string]any{
			"status":    "unhealthy",
			"timestamp": now,
			"error":     "Database connection failed",
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": now,
		"database": map[string]any{
			"connected":   true,
			"vectorIndex": st.VectorIndexSupport,
			"documents":   st.Documents,
		},
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"documents": "/api/documents",
		"search":    "/api/search",
		"health":    "/health",
	}
	if s.mcp != nil {
		endpoints["mcp"] = "/mcp"
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"name":        "Semantic Search API",
		"version":     Version,
		"description": "API for semantic search over documents with vector embeddings",
		"endpoints":   endpoints,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusNotFound, envelope{
		Error:   "Not Found",
		Message: "Endpoint not found: " + r.Method + " " + r.URL.Path,
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusMethodNotAllowed, envelope{
		Error:   "Method Not Allowed",
		Message: r.Method + " is not supported on " + r.URL.Path,
	})
}
