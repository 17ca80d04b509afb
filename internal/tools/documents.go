package tools

import (
	"context"
	"encoding/json"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/search"
)

// Service is the orchestrator surface the tools need. *search.Orchestrator implements it.
type Service interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error)
	AddDocumentWithEmbedding(ctx context.Context, title, content string, metadata models.Metadata) (*models.Document, error)
	UpdateDocumentWithEmbedding(ctx context.Context, id int64, patch models.DocumentPatch) (*models.Document, error)
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	ListDocuments(ctx context.Context, page, pageSize int) (*models.Page, error)
	DeleteDocument(ctx context.Context, id int64) error
	Status(ctx context.Context) (*search.Status, error)
}

// SearchDefaults fills omitted semanticSearch arguments.
type SearchDefaults struct {
	Threshold  float64
	MaxResults int
}

// NewDocumentTools returns a registry with every document and search tool bound to svc.
func NewDocumentTools(svc Service, defaults SearchDefaults) *Registry {
	if defaults.MaxResults <= 0 {
		defaults.MaxResults = models.DefaultMaxResults
	}
	return NewRegistry(
		&getDocuments{svc: svc},
		&getDocument{svc: svc},
		&createDocument{svc: svc},
		&updateDocument{svc: svc},
		&deleteDocument{svc: svc},
		&semanticSearch{svc: svc, defaults: defaults},
		&databaseInfo{svc: svc},
	)
}

var idSchema = prop("integer", "Document ID")

type getDocuments struct{ svc Service }

func (o *getDocuments) Describe() Descriptor {
	return Descriptor{
		Name:        "getDocuments",
		Description: "Get documents with pagination, newest first",
		InputSchema: objectSchema(nil, map[string]any{
			"page":     prop("integer", "Page number (starts at 1, default 1)"),
			"pageSize": prop("integer", "Number of documents per page (1-100, default 10)"),
		}),
	}
}

func (o *getDocuments) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	args := struct {
		Page     int `json:"page"`
		PageSize int `json:"pageSize"`
	}{Page: 1, PageSize: models.DefaultPageSize}
	if err := decodeArgs("getDocuments", raw, &args); err != nil {
		return nil, err
	}
	return o.svc.ListDocuments(ctx, args.Page, args.PageSize)
}

type getDocument struct{ svc Service }

func (o *getDocument) Describe() Descriptor {
	return Descriptor{
		Name:        "getDocument",
		Description: "Get a document by ID",
		InputSchema: objectSchema([]string{"id"}, map[string]any{"id": idSchema}),
	}
}

func (o *getDocument) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ID int64 `json:"id"`
	}
	if err := decodeArgs("getDocument", raw, &args); err != nil {
		return nil, err
	}
	return o.svc.GetDocument(ctx, args.ID)
}

type createDocument struct{ svc Service }

func (o *createDocument) Describe() Descriptor {
	return Descriptor{
		Name:        "createDocument",
		Description: "Create a new document with embedding",
		InputSchema: objectSchema([]string{"title", "content"}, map[string]any{
			"title":    prop("string", "Document title"),
			"content":  prop("string", "Document content"),
			"metadata": prop("object", "Document metadata"),
		}),
	}
}

func (o *createDocument) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	var in models.DocumentInput
	if err := decodeArgs("createDocument", raw, &in); err != nil {
		return nil, err
	}
	return o.svc.AddDocumentWithEmbedding(ctx, in.Title, in.Content, in.Metadata)
}

type updateDocument struct{ svc Service }

func (o *updateDocument) Describe() Descriptor {
	return Descriptor{
		Name:        "updateDocument",
		Description: "Update a document and, when title or content change, its embedding",
		InputSchema: objectSchema([]string{"id"}, map[string]any{
			"id":       idSchema,
			"title":    prop("string", "Document title"),
			"content":  prop("string", "Document content"),
			"metadata": prop("object", "Document metadata"),
		}),
	}
}

func (o *updateDocument) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ID int64 `json:"id"`
		models.DocumentPatch
	}
	if err := decodeArgs("updateDocument", raw, &args); err != nil {
		return nil, err
	}
	if args.IsEmpty() {
		return nil, apperr.Validation("updateDocument", "at least one of title, content or metadata is required")
	}
	return o.svc.UpdateDocumentWithEmbedding(ctx, args.ID, args.DocumentPatch)
}

type deleteDocument struct{ svc Service }

func (o *deleteDocument) Describe() Descriptor {
	return Descriptor{
		Name:        "deleteDocument",
		Description: "Delete a document and its embeddings",
		InputSchema: objectSchema([]string{"id"}, map[string]any{"id": idSchema}),
	}
}

func (o *deleteDocument) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ID int64 `json:"id"`
	}
	if err := decodeArgs("deleteDocument", raw, &args); err != nil {
		return nil, err
	}
	if err := o.svc.DeleteDocument(ctx, args.ID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "id": args.ID}, nil
}

type semanticSearch struct {
	svc      Service
	defaults SearchDefaults
}

func (o *semanticSearch) Describe() Descriptor {
	return Descriptor{
		Name:        "semanticSearch",
		Description: "Perform semantic search over stored documents",
		InputSchema: objectSchema([]string{"query"}, map[string]any{
			"query":               prop("string", "Search query"),
			"similarityThreshold": prop("number", "Minimum similarity threshold (0-1)"),
			"maxResults":          prop("integer", "Maximum results to return"),
		}),
	}
}

func (o *semanticSearch) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	args := models.SearchQuery{Threshold: o.defaults.Threshold, MaxResults: o.defaults.MaxResults}
	if err := decodeArgs("semanticSearch", raw, &args); err != nil {
		return nil, err
	}
	return o.svc.Search(ctx, args)
}

type databaseInfo struct{ svc Service }

func (o *databaseInfo) Describe() Descriptor {
	return Descriptor{
		Name:        "getDatabaseInfo",
		Description: "Report database connectivity, document count and vector index support",
		InputSchema: objectSchema(nil, map[string]any{}),
	}
}

func (o *databaseInfo) Invoke(ctx context.Context, _ json.RawMessage) (any, error) {
	return o.svc.Status(ctx)
}
