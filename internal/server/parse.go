package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
)

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation("parse id", "Document ID must be a positive integer")
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("parse body", "request body is required")
		}
		return apperr.Validation("parse body", "invalid request body: %s", err.Error())
	}
	return nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("parse query", "%s must be an integer", name)
	}
	return n, nil
}

func floatParam(q url.Values, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Validation("parse query", "%s must be a number", name)
	}
	return f, nil
}

// searchRequest is the POST /api/search body. Omitted fields take the configured defaults.
type searchRequest struct {
	Query               string   `json:"query"`
	SimilarityThreshold *float64 `json:"similarityThreshold"`
	MaxResults          *int     `json:"maxResults"`
}

func (s *Server) searchDefaults() models.SearchQuery {
	return models.SearchQuery{
		Threshold:  s.config.Search.DefaultThreshold,
		MaxResults: s.config.Search.DefaultMaxResults,
	}
}

func (s *Server) parseSearchQuery(q url.Values) (models.SearchQuery, error) {
	out := s.searchDefaults()
	out.Query = q.Get("query")
	var err error
	if out.Threshold, err = floatParam(q, "similarityThreshold", out.Threshold); err != nil {
		return out, err
	}
	if out.MaxResults, err = intParam(q, "maxResults", out.MaxResults); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Server) parseSearchBody(w http.ResponseWriter, r *http.Request) (models.SearchQuery, error) {
	out := s.searchDefaults()
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		return out, err
	}
	out.Query = req.Query
	if req.SimilarityThreshold != nil {
		out.Threshold = *req.SimilarityThreshold
	}
	if req.MaxResults != nil {
		out.MaxResults = *req.MaxResults
	}
	return out, nil
}
