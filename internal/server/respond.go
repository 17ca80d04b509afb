package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/search"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondData(w http.ResponseWriter, status int, data any, message string) {
	s.respondJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

// respondError maps err onto a status code and writes the failure envelope.
// Partial writes carry the persisted document in data.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	body := envelope{Error: errorTitle(kind), Message: apperr.Message(err)}

	var pw *search.PartialWriteError
	if errors.As(err, &pw) {
		body.Data = pw.Document
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", kind.String()),
			zap.Error(err))
	} else {
		s.logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("kind", kind.String()),
			zap.Error(err))
	}
	if kind == apperr.KindInternal && !s.config.Debug {
		body.Message = "An unexpected error occurred"
	}
	s.respondJSON(w, status, body)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorTitle(k apperr.Kind) string {
	switch k {
	case apperr.KindValidation:
		return "Validation Error"
	case apperr.KindNotFound:
		return "Not Found"
	case apperr.KindDimensionMismatch:
		return "Dimension Mismatch"
	case apperr.KindExternalService:
		return "External Service Error"
	default:
		return "Internal Server Error"
	}
}
