// Package search coordinates the document store and the embedding service:
// semantic queries, document writes that keep embeddings current, and repair.
package search

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/embedding"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/storage"
)

// Embedder turns text into vectors. *embedding.Service implements it.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) (embedding.Result, error)
	GenerateDocumentEmbedding(ctx context.Context, title, content string) (embedding.Result, error)
	GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([]embedding.Result, error)
}

// Orchestrator runs search and document operations over a store and an embedder.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	store               storage.Store
	embedder            Embedder
	logger              *zap.Logger
	transactionalWrites bool
	maxResultsLimit     int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTransactionalWrites controls whether a document write and its embedding
// write share one store transaction. Enabled by default.
func WithTransactionalWrites(enabled bool) Option {
	return func(o *Orchestrator) {
		o.transactionalWrites = enabled
	}
}

// WithMaxResultsLimit sets the largest accepted maxResults. Non-positive values are ignored.
func WithMaxResultsLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxResultsLimit = n
		}
	}
}

// NewOrchestrator creates an orchestrator over store and embedder.
func NewOrchestrator(store storage.Store, embedder Embedder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:               store,
		embedder:            embedder,
		logger:              zap.NewNop(),
		transactionalWrites: true,
		maxResultsLimit:     models.MaxResultsLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MaxResultsLimit returns the largest accepted maxResults.
func (o *Orchestrator) MaxResultsLimit() int {
	return o.maxResultsLimit
}

// SemanticSearch embeds query and returns current embeddings whose similarity
// exceeds threshold, best first, at most maxResults. Results are returned as the store ranks them.
func (o *Orchestrator) SemanticSearch(ctx context.Context, query string, threshold float64, maxResults int) ([]*models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Validation("semantic search", "query required")
	}
	if err := models.ValidateSearchBounds(threshold, maxResults, o.maxResultsLimit); err != nil {
		return nil, err
	}
	res, err := o.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	return o.store.SearchEmbeddings(ctx, res.Vector, threshold, maxResults)
}

// Search runs SemanticSearch and attaches the query parameters and timing.
func (o *Orchestrator) Search(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	results, err := o.SemanticSearch(ctx, q.Query, q.Threshold, q.MaxResults)
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Results: results,
		Meta: models.SearchMeta{
			Query:               q.Query,
			SimilarityThreshold: q.Threshold,
			MaxResults:          q.MaxResults,
			ResultCount:         len(results),
			QueryTime:           time.Since(start).Milliseconds(),
		},
	}, nil
}

// SearchByVector searches with a precomputed query vector, bypassing the embedder.
func (o *Orchestrator) SearchByVector(ctx context.Context, vec []float32, threshold float64, maxResults int) ([]*models.SearchResult, error) {
	if err := models.ValidateSearchBounds(threshold, maxResults, o.maxResultsLimit); err != nil {
		return nil, err
	}
	return o.store.SearchEmbeddings(ctx, vec, threshold, maxResults)
}

// AddDocumentWithEmbedding creates a document and stores the embedding of its
// stored title and content. With transactional writes the embedding is generated
// first and the document and embedding rows commit together, so a failed
// embedding writes nothing; otherwise the document persists and a *PartialWriteError
// carrying it is returned.
func (o *Orchestrator) AddDocumentWithEmbedding(ctx context.Context, title, content string, metadata models.Metadata) (*models.Document, error) {
	in := models.DocumentInput{Title: title, Content: content, Metadata: metadata}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if o.transactionalWrites {
		// Embed before the transaction so no write lock or pooled connection
		// is held across the provider call.
		res, err := o.embedder.GenerateDocumentEmbedding(ctx, title, content)
		if err != nil {
			return nil, err
		}
		var doc *models.Document
		err = o.store.WithTx(ctx, func(tx storage.Store) error {
			var err error
			if doc, err = tx.CreateDocument(ctx, title, content, metadata); err != nil {
				return err
			}
			_, err = tx.StoreEmbedding(ctx, doc.ID, res.Vector, res.Model)
			return err
		})
		if err != nil {
			return nil, err
		}
		return doc, nil
	}

	doc, err := o.store.CreateDocument(ctx, title, content, metadata)
	if err != nil {
		return nil, err
	}
	if err := o.embedDocument(ctx, o.store, doc); err != nil {
		o.logger.Warn("document stored without embedding",
			zap.Int64("document_id", doc.ID), zap.Error(err))
		return doc, newPartialWriteError("add document", doc, err)
	}
	return doc, nil
}

// UpdateDocumentWithEmbedding applies the fields of patch that differ from the
// stored document. When nothing differs the current document is returned without
// a write. A new embedding is stored only when title or content changed.
func (o *Orchestrator) UpdateDocumentWithEmbedding(ctx context.Context, id int64, patch models.DocumentPatch) (*models.Document, error) {
	if err := validateID("update document", id); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	current, err := o.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.NotFound("update document", "document %d not found", id)
	}

	changes := patch.Diff(current)
	if changes.IsEmpty() {
		return current, nil
	}
	if !changes.TouchesText() {
		return o.applyUpdate(ctx, o.store, id, changes)
	}

	if o.transactionalWrites {
		next := changes.Apply(current)
		res, err := o.embedder.GenerateDocumentEmbedding(ctx, next.Title, next.Content)
		if err != nil {
			return nil, err
		}
		var doc *models.Document
		err = o.store.WithTx(ctx, func(tx storage.Store) error {
			var err error
			if doc, err = o.applyUpdate(ctx, tx, id, changes); err != nil {
				return err
			}
			_, err = tx.StoreEmbedding(ctx, doc.ID, res.Vector, res.Model)
			return err
		})
		if err != nil {
			return nil, err
		}
		return doc, nil
	}

	doc, err := o.applyUpdate(ctx, o.store, id, changes)
	if err != nil {
		return nil, err
	}
	if err := o.embedDocument(ctx, o.store, doc); err != nil {
		o.logger.Warn("document updated without new embedding",
			zap.Int64("document_id", doc.ID), zap.Error(err))
		return doc, newPartialWriteError("update document", doc, err)
	}
	return doc, nil
}

func (o *Orchestrator) applyUpdate(ctx context.Context, store storage.Store, id int64, changes models.DocumentPatch) (*models.Document, error) {
	doc, err := store.UpdateDocument(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		// Deleted between the read and the write.
		return nil, apperr.NotFound("update document", "document %d not found", id)
	}
	return doc, nil
}

func (o *Orchestrator) embedDocument(ctx context.Context, store storage.Store, doc *models.Document) error {
	res, err := o.embedder.GenerateDocumentEmbedding(ctx, doc.Title, doc.Content)
	if err != nil {
		return err
	}
	_, err = store.StoreEmbedding(ctx, doc.ID, res.Vector, res.Model)
	return err
}

// GetDocument returns a document or a not-found error.
func (o *Orchestrator) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	if err := validateID("get document", id); err != nil {
		return nil, err
	}
	doc, err := o.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperr.NotFound("get document", "document %d not found", id)
	}
	return doc, nil
}

// ListDocuments returns one 1-based page of documents, newest first.
func (o *Orchestrator) ListDocuments(ctx context.Context, page, pageSize int) (*models.Page, error) {
	if err := models.ValidatePage(page, pageSize); err != nil {
		return nil, err
	}
	total, err := o.store.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	items, err := o.store.ListDocuments(ctx, pageSize, models.Offset(page, pageSize))
	if err != nil {
		return nil, err
	}
	return models.NewPage(items, total, page, pageSize), nil
}

// DeleteDocument removes a document and its embeddings.
func (o *Orchestrator) DeleteDocument(ctx context.Context, id int64) error {
	if err := validateID("delete document", id); err != nil {
		return err
	}
	deleted, err := o.store.DeleteDocument(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("delete document", "document %d not found", id)
	}
	return nil
}

// CountDocuments returns the number of stored documents.
func (o *Orchestrator) CountDocuments(ctx context.Context) (int64, error) {
	return o.store.CountDocuments(ctx)
}

// Status is a health snapshot of the store.
type Status struct {
	Database           string `json:"database"`
	VectorIndexSupport bool   `json:"vectorIndexSupport"`
	Documents          int64  `json:"documents"`
}

// Status pings the store and reports document count and vector index support.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	if err := o.store.Ping(ctx); err != nil {
		return &Status{Database: "unavailable"}, err
	}
	count, err := o.store.CountDocuments(ctx)
	if err != nil {
		return &Status{Database: "unavailable"}, err
	}
	return &Status{
		Database:           "connected",
		VectorIndexSupport: o.store.HasVectorIndexSupport(ctx),
		Documents:          count,
	}, nil
}

func validateID(op string, id int64) error {
	if id < 1 {
		return apperr.Validation(op, "id must be a positive integer, got %d", id)
	}
	return nil
}
