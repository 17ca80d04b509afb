// Package models defines core data structures for documents, embeddings, queries, and search results.
package models

import (
	"strings"
	"time"

	"github.com/hyperjump/semsearch/internal/apperr"
)

// Document represents a stored document with metadata.
type Document struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Metadata  Metadata  `json:"metadata" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Embedding is one stored vector for a document. A document may own many;
// the latest one not superseded is its current semantic representation.
type Embedding struct {
	ID           string     `json:"id" db:"id"`
	DocumentID   int64      `json:"document_id" db:"document_id"`
	Vector       []float32  `json:"embedding" db:"embedding"`
	Model        string     `json:"model" db:"model"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	SupersededAt *time.Time `json:"superseded_at,omitempty" db:"superseded_at"`
}

// DocumentInput is the input for creating a document.
type DocumentInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Validate checks that title and content are present and metadata is well formed.
func (in *DocumentInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validation("create document", "title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return apperr.Validation("create document", "content is required")
	}
	return ValidateMetadata(in.Metadata)
}

// DocumentPatch is a partial document update. Nil fields are not provided.
type DocumentPatch struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// IsEmpty reports whether no field is provided.
func (p DocumentPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Metadata == nil
}

// Validate rejects provided-but-empty title or content and malformed metadata.
func (p DocumentPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperr.Validation("update document", "title cannot be empty")
	}
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return apperr.Validation("update document", "content cannot be empty")
	}
	if p.Metadata != nil {
		return ValidateMetadata(*p.Metadata)
	}
	return nil
}

// Diff returns the subset of p whose values differ from doc.
func (p DocumentPatch) Diff(doc *Document) DocumentPatch {
	var out DocumentPatch
	if p.Title != nil && *p.Title != doc.Title {
		out.Title = p.Title
	}
	if p.Content != nil && *p.Content != doc.Content {
		out.Content = p.Content
	}
	if p.Metadata != nil && !p.Metadata.Equal(doc.Metadata) {
		out.Metadata = p.Metadata
	}
	return out
}

// TouchesText reports whether the patch changes title or content.
func (p DocumentPatch) TouchesText() bool {
	return p.Title != nil || p.Content != nil
}

// Apply returns a copy of doc with the patch applied.
func (p DocumentPatch) Apply(doc *Document) *Document {
	out := *doc
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Content != nil {
		out.Content = *p.Content
	}
	if p.Metadata != nil {
		out.Metadata = p.Metadata.Clone()
	}
	return &out
}

// EmbeddingText builds the single provider input for a document so that title and
// content jointly influence the vector.
func EmbeddingText(title, content string) string {
	return "Title: " + title + "\n\nContent: " + content
}
