package models

import (
	"strings"

	"github.com/hyperjump/semsearch/internal/apperr"
)

const (
	// DefaultThreshold is the similarity cut-off used when a caller omits it.
	DefaultThreshold = 0.7
	// DefaultMaxResults is the result cap used when a caller omits it.
	DefaultMaxResults = 10
	// MaxResultsLimit is the largest accepted result cap.
	MaxResultsLimit = 100
	// DefaultPageSize is the page size used when a caller omits it.
	DefaultPageSize = 10
	// MaxPageSize is the largest accepted page size for listing.
	MaxPageSize = 100
)

// SearchQuery represents a semantic search request.
type SearchQuery struct {
	Query      string  `json:"query"`
	Threshold  float64 `json:"similarityThreshold"`
	MaxResults int     `json:"maxResults"`
}

// Validate checks the query text and ranges.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return apperr.Validation("semantic search", "query required")
	}
	return ValidateSearchBounds(q.Threshold, q.MaxResults, MaxResultsLimit)
}

// ValidateSearchBounds requires threshold in [0,1] and maxResults in [1,limit].
// A non-positive limit means MaxResultsLimit.
func ValidateSearchBounds(threshold float64, maxResults, limit int) error {
	if limit <= 0 {
		limit = MaxResultsLimit
	}
	if threshold < 0 || threshold > 1 || threshold != threshold {
		return apperr.Validation("semantic search", "similarity threshold must be between 0 and 1, got %v", threshold)
	}
	if maxResults < 1 || maxResults > limit {
		return apperr.Validation("semantic search", "max results must be between 1 and %d, got %d", limit, maxResults)
	}
	return nil
}

// ValidatePage requires page >= 1 and pageSize in [1,MaxPageSize].
func ValidatePage(page, pageSize int) error {
	if page < 1 {
		return apperr.Validation("list documents", "page must be at least 1, got %d", page)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return apperr.Validation("list documents", "page size must be between 1 and %d, got %d", MaxPageSize, pageSize)
	}
	return nil
}
