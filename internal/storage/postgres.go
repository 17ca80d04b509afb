package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
)

const pgForeignKeyViolation = "23503"

// pgQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL with the pgvector extension.
// Similarity search runs server-side through the semantic_search SQL function
// backed by an HNSW index.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    pgQuerier
	inTx bool
	opts options
}

// NewPostgresStore connects a pool to connString. pgvector types are registered
// on each new connection when the extension is installed.
func NewPostgresStore(ctx context.Context, connString string, connectTimeout time.Duration, opts ...Option) (*PostgresStore, error) {
	o := buildOptions(opts)
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = int32(o.maxConns)
	}
	cfg.MaxConnIdleTime = 30 * time.Second
	if connectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = connectTimeout
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		var installed bool
		if err := conn.QueryRow(ctx, vectorExtensionProbe).Scan(&installed); err != nil {
			return err
		}
		if !installed {
			return nil
		}
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, apperr.External("connect database", err)
	}
	return &PostgresStore{pool: pool, q: pool, opts: o}, nil
}

const vectorExtensionProbe = `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`

const pgDocumentColumns = `id, title, content, metadata::text, created_at, updated_at`

func scanPGDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	var metadataJSON string
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	meta, err := models.DecodeMetadata([]byte(metadataJSON))
	if err != nil {
		return nil, err
	}
	doc.Metadata = meta
	return &doc, nil
}

func collectPGDocuments(rows pgx.Rows) ([]*models.Document, error) {
	defer rows.Close()
	docs := []*models.Document{}
	for rows.Next() {
		doc, err := scanPGDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CreateDocument inserts a document.
func (s *PostgresStore) CreateDocument(ctx context.Context, title, content string, metadata models.Metadata) (*models.Document, error) {
	if err := validateDocument("create document", title, content); err != nil {
		return nil, err
	}
	if err := models.ValidateMetadata(metadata); err != nil {
		return nil, err
	}
	metadataJSON, err := metadata.Encode()
	if err != nil {
		return nil, apperr.Validation("create document", "failed to marshal metadata: %s", err.Error())
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	doc, err := scanPGDocument(s.q.QueryRow(ctx,
		`INSERT INTO documents (title, content, metadata) VALUES ($1, $2, $3::jsonb)
		 RETURNING `+pgDocumentColumns,
		title, content, string(metadataJSON)))
	if err != nil {
		return nil, apperr.External("create document", err)
	}
	return doc, nil
}

// GetDocument returns a document by ID, or nil when absent.
func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	doc, err := scanPGDocument(s.q.QueryRow(ctx,
		`SELECT `+pgDocumentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.External("get document", err)
	}
	return doc, nil
}

// ListDocuments returns documents newest first.
func (s *PostgresStore) ListDocuments(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	if err := validateList(limit, offset); err != nil {
		return nil, err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.Query(ctx,
		`SELECT `+pgDocumentColumns+` FROM documents
		 ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apperr.External("list documents", err)
	}
	docs, err := collectPGDocuments(rows)
	if err != nil {
		return nil, apperr.External("list documents", err)
	}
	return docs, nil
}

// UpdateDocument applies the provided fields. updated_at is bumped by trigger.
func (s *PostgresStore) UpdateDocument(ctx context.Context, id int64, patch models.DocumentPatch) (*models.Document, error) {
	if patch.IsEmpty() {
		return nil, nil
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	var sets []string
	args := []any{id}
	add := func(column string, value any, cast string) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args))+cast)
	}
	if patch.Title != nil {
		add("title", *patch.Title, "")
	}
	if patch.Content != nil {
		add("content", *patch.Content, "")
	}
	if patch.Metadata != nil {
		data, err := patch.Metadata.Encode()
		if err != nil {
			return nil, apperr.Validation("update document", "failed to marshal metadata: %s", err.Error())
		}
		add("metadata", string(data), "::jsonb")
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	doc, err := scanPGDocument(s.q.QueryRow(ctx,
		`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id = $1
		 RETURNING `+pgDocumentColumns, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.External("update document", err)
	}
	return doc, nil
}

// DeleteDocument removes a document; embeddings cascade.
func (s *PostgresStore) DeleteDocument(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	tag, err := s.q.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, apperr.External("delete document", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountDocuments returns the total number of documents.
func (s *PostgresStore) CountDocuments(ctx context.Context) (int64, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var count int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, apperr.External("count documents", err)
	}
	return count, nil
}

// StoreEmbedding supersedes the current embedding and inserts vec in one statement.
func (s *PostgresStore) StoreEmbedding(ctx context.Context, documentID int64, vec []float32, model string) (*models.Embedding, error) {
	if err := s.opts.checkDimensions("store embedding", vec); err != nil {
		return nil, err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	emb := &models.Embedding{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Vector:     vec,
		Model:      model,
	}
	err := s.q.QueryRow(ctx,
		`WITH superseded AS (
			UPDATE embeddings SET superseded_at = now()
			WHERE document_id = $2 AND superseded_at IS NULL
		 )
		 INSERT INTO embeddings (id, document_id, embedding, model)
		 VALUES ($1, $2, $3::vector, $4)
		 RETURNING created_at`,
		emb.ID, documentID, pgvector.NewVector(vec), model,
	).Scan(&emb.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, apperr.NotFound("store embedding", "document %d not found", documentID)
		}
		return nil, apperr.External("store embedding", err)
	}
	return emb, nil
}

// SearchEmbeddings delegates ranking to the semantic_search SQL function.
func (s *PostgresStore) SearchEmbeddings(ctx context.Context, query []float32, threshold float64, maxResults int) ([]*models.SearchResult, error) {
	if err := s.opts.checkDimensions("search embeddings", query); err != nil {
		return nil, err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.q.Query(ctx,
		`SELECT id::text, document_id, title, content, similarity
		 FROM semantic_search($1::vector, $2, $3)`,
		pgvector.NewVector(query), threshold, maxResults)
	if err != nil {
		return nil, s.searchError(ctx, len(query), err)
	}
	defer rows.Close()

	results := []*models.SearchResult{}
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.EmbeddingID, &r.DocumentID, &r.Title, &r.Content, &r.Similarity); err != nil {
			return nil, apperr.External("search embeddings", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.searchError(ctx, len(query), err)
	}
	s.opts.logger.Debug("pgvector similarity search",
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)))
	return results, nil
}

// searchError reports a query that failed because the stored vectors have a
// different width as a dimension mismatch.
func (s *PostgresStore) searchError(ctx context.Context, queryDims int, err error) error {
	var got int
	probeErr := s.q.QueryRow(ctx,
		`SELECT vector_dims(embedding) FROM embeddings
		 WHERE superseded_at IS NULL AND vector_dims(embedding) <> $1 LIMIT 1`, queryDims).Scan(&got)
	if probeErr == nil && got > 0 {
		return apperr.Dimension("search embeddings", got, queryDims)
	}
	return apperr.External("search embeddings", err)
}

// ListEmbeddings returns every embedding of a document, newest first.
func (s *PostgresStore) ListEmbeddings(ctx context.Context, documentID int64) ([]*models.Embedding, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.Query(ctx,
		`SELECT id::text, document_id, embedding, model, created_at, superseded_at
		 FROM embeddings WHERE document_id = $1
		 ORDER BY created_at DESC, superseded_at DESC NULLS FIRST`, documentID)
	if err != nil {
		return nil, apperr.External("list embeddings", err)
	}
	defer rows.Close()

	out := []*models.Embedding{}
	for rows.Next() {
		var e models.Embedding
		var v pgvector.Vector
		if err := rows.Scan(&e.ID, &e.DocumentID, &v, &e.Model, &e.CreatedAt, &e.SupersededAt); err != nil {
			return nil, apperr.External("list embeddings", err)
		}
		e.Vector = v.Slice()
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.External("list embeddings", err)
	}
	return out, nil
}

// CountEmbeddings counts all embedding rows of a document.
func (s *PostgresStore) CountEmbeddings(ctx context.Context, documentID int64) (int64, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var count int64
	err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM embeddings WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, apperr.External("count embeddings", err)
	}
	return count, nil
}

// DocumentsWithoutEmbeddings returns documents lacking a current embedding, oldest first.
func (s *PostgresStore) DocumentsWithoutEmbeddings(ctx context.Context, limit int) ([]*models.Document, error) {
	if limit < 1 {
		return nil, apperr.Validation("documents without embeddings", "limit must be at least 1, got %d", limit)
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.Query(ctx,
		`SELECT `+pgDocumentColumns+` FROM documents d
		 WHERE NOT EXISTS (
			SELECT 1 FROM embeddings e WHERE e.document_id = d.id AND e.superseded_at IS NULL
		 )
		 ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.External("documents without embeddings", err)
	}
	docs, err := collectPGDocuments(rows)
	if err != nil {
		return nil, apperr.External("documents without embeddings", err)
	}
	return docs, nil
}

// HasVectorIndexSupport reports whether the pgvector extension is installed.
func (s *PostgresStore) HasVectorIndexSupport(ctx context.Context) bool {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var installed bool
	if err := s.q.QueryRow(ctx, vectorExtensionProbe).Scan(&installed); err != nil {
		s.opts.logger.Warn("vector extension probe failed", zap.Error(err))
		return false
	}
	return installed
}

// WithTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.External("begin transaction", err)
	}
	txStore := *s
	txStore.q = tx
	txStore.inTx = true

	if err := fn(&txStore); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.opts.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.External("commit transaction", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return apperr.External("ping", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
