// Package storage defines the persistence interfaces for documents and embeddings
// and provides PostgreSQL (pgvector) and SQLite implementations.
package storage

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
)

// DefaultStatementTimeout bounds a single store statement when none is configured.
const DefaultStatementTimeout = 5 * time.Second

// DocumentStore is CRUD over document records.
type DocumentStore interface {
	// CreateDocument inserts a document and returns it with id and timestamps assigned.
	CreateDocument(ctx context.Context, title, content string, metadata models.Metadata) (*models.Document, error)
	// GetDocument returns nil, nil when id does not exist.
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	// ListDocuments returns documents newest first.
	ListDocuments(ctx context.Context, limit, offset int) ([]*models.Document, error)
	// UpdateDocument applies the provided fields. It returns nil, nil without
	// writing when the patch is empty or id does not exist.
	UpdateDocument(ctx context.Context, id int64, patch models.DocumentPatch) (*models.Document, error)
	// DeleteDocument reports whether a row was removed. Embeddings cascade.
	DeleteDocument(ctx context.Context, id int64) (bool, error)
	CountDocuments(ctx context.Context) (int64, error)
}

// EmbeddingStore persists embedding vectors and answers similarity queries.
type EmbeddingStore interface {
	// StoreEmbedding appends a new current embedding for the document and marks
	// its previous embeddings superseded. History rows are kept.
	StoreEmbedding(ctx context.Context, documentID int64, vec []float32, model string) (*models.Embedding, error)
	// SearchEmbeddings returns current embeddings with similarity > threshold,
	// highest first, at most maxResults. similarity = 1 - cosine distance.
	SearchEmbeddings(ctx context.Context, query []float32, threshold float64, maxResults int) ([]*models.SearchResult, error)
	// ListEmbeddings returns every embedding row of a document, newest first.
	ListEmbeddings(ctx context.Context, documentID int64) ([]*models.Embedding, error)
	// CountEmbeddings counts every embedding row of a document, superseded included.
	CountEmbeddings(ctx context.Context, documentID int64) (int64, error)
	// DocumentsWithoutEmbeddings returns up to limit documents that have no current embedding.
	DocumentsWithoutEmbeddings(ctx context.Context, limit int) ([]*models.Document, error)
	// HasVectorIndexSupport reports whether the backend has an ANN index for similarity queries.
	HasVectorIndexSupport(ctx context.Context) bool
}

// Store is the full persistence surface used by the search orchestrator.
type Store interface {
	DocumentStore
	EmbeddingStore
	// WithTx runs fn against a store bound to one transaction. fn's error rolls
	// back; nil commits. Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	timeout    time.Duration
	dimensions int
	maxConns   int
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStatementTimeout bounds each statement. Non-positive values are ignored.
func WithStatementTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithDimensions sets the vector width D. Stored and query vectors of any
// other length are rejected.
func WithDimensions(d int) Option {
	return func(o *options) {
		o.dimensions = d
	}
}

// WithMaxConns bounds the connection pool.
func WithMaxConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  zap.NewNop(),
		timeout: DefaultStatementTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validateDocument(op, title, content string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.Validation(op, "title is required")
	}
	if strings.TrimSpace(content) == "" {
		return apperr.Validation(op, "content is required")
	}
	return nil
}

func validateList(limit, offset int) error {
	if limit < 1 {
		return apperr.Validation("list documents", "limit must be at least 1, got %d", limit)
	}
	if offset < 0 {
		return apperr.Validation("list documents", "offset must be non-negative, got %d", offset)
	}
	return nil
}

func (o options) checkDimensions(op string, vec []float32) error {
	if len(vec) == 0 {
		return apperr.Validation(op, "vector is empty")
	}
	if o.dimensions > 0 && len(vec) != o.dimensions {
		return apperr.Dimension(op, len(vec), o.dimensions)
	}
	return nil
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}
