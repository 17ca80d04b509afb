package models

// SearchResult represents a single semantic hit.
type SearchResult struct {
	EmbeddingID string  `json:"id"`
	DocumentID  int64   `json:"document_id"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Similarity  float64 `json:"similarity"`
}

// SearchMeta describes the parameters a search ran with.
type SearchMeta struct {
	Query               string  `json:"query"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
	MaxResults          int     `json:"maxResults"`
	ResultCount         int     `json:"resultCount"`
	QueryTime           int64   `json:"queryTimeMs"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results []*SearchResult `json:"results"`
	Meta    SearchMeta      `json:"meta"`
}

// Page is one page of documents ordered newest first.
type Page struct {
	Items      []*Document `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// NewPage builds a page and derives TotalPages as ceil(total/pageSize).
func NewPage(items []*Document, total int64, page, pageSize int) *Page {
	if items == nil {
		items = []*Document{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &Page{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// Offset returns the row offset for a 1-based page.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}
