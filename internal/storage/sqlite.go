package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/vector"
)

const (
	sqliteDriverName = "sqlite3_semsearch"
	memoryPath       = ":memory:"
)

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("vec_cosine_similarity", sqliteCosineSimilarity, true)
		},
	})
}

// sqliteCosineSimilarity is registered as vec_cosine_similarity(blob, blob).
func sqliteCosineSimilarity(a, b []byte) (float64, error) {
	va, err := vector.DecodeBlob(a)
	if err != nil {
		return 0, err
	}
	vb, err := vector.DecodeBlob(b)
	if err != nil {
		return 0, err
	}
	return vector.CosineSimilarity(va, vb)
}

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements Store using SQLite. Similarity is computed in-process
// by a registered SQL function over every current embedding; there is no ANN index.
type SQLiteStorage struct {
	db   *sql.DB
	q    sqlQuerier
	inTx bool
	path string
	opts options
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dbPath != memoryPath && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := "file:" + dbPath + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	o := buildOptions(opts)
	o.logger.Info("sqlite backend has no vector index; similarity search scans every embedding",
		zap.String("path", dbPath))
	s := &SQLiteStorage{db: db, q: db, path: dbPath, opts: o}
	if o.dimensions > 0 {
		ctx, cancel := o.withTimeout(context.Background())
		defer cancel()
		if got, err := s.mismatchedWidth(ctx, o.dimensions); err == nil && got > 0 {
			o.logger.Warn("stored embeddings do not match the configured dimensions; searches will fail until they are re-embedded",
				zap.Int("stored", got), zap.Int("configured", o.dimensions))
		}
	}
	return s, nil
}

// mismatchedWidth returns the width of some current embedding that is not want
// floats wide, or 0 when every current embedding matches.
func (s *SQLiteStorage) mismatchedWidth(ctx context.Context, want int) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT length(embedding) FROM embeddings
		 WHERE superseded_at IS NULL AND length(embedding) <> ? LIMIT 1`, want*4).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n / 4, nil
}

// searchError classifies a failed similarity query. The registered SQL function
// reports width mismatches as plain text, so stored widths are checked directly.
func (s *SQLiteStorage) searchError(ctx context.Context, queryDims int, err error) error {
	if got, probeErr := s.mismatchedWidth(ctx, queryDims); probeErr == nil && got > 0 {
		return apperr.Dimension("search embeddings", got, queryDims)
	}
	return apperr.External("search embeddings", err)
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL CHECK (length(title) > 0),
		content TEXT NOT NULL CHECK (length(content) > 0),
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY,
		document_id INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		model TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		superseded_at TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_document_id ON embeddings(document_id);
	CREATE INDEX IF NOT EXISTS idx_embeddings_current ON embeddings(document_id) WHERE superseded_at IS NULL;
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

const sqliteDocumentColumns = `id, title, content, metadata, created_at, updated_at`

func scanSQLiteDocument(scan func(dest ...any) error) (*models.Document, error) {
	var doc models.Document
	var metadataJSON string
	if err := scan(&doc.ID, &doc.Title, &doc.Content, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	meta, err := models.DecodeMetadata([]byte(metadataJSON))
	if err != nil {
		return nil, err
	}
	doc.Metadata = meta
	return &doc, nil
}

// CreateDocument inserts a document.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, title, content string, metadata models.Metadata) (*models.Document, error) {
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

	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO documents (title, content, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		title, content, string(metadataJSON), now, now,
	)
	if err != nil {
		return nil, apperr.External("create document", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.External("create document", err)
	}
	return &models.Document{
		ID:        id,
		Title:     title,
		Content:   content,
		Metadata:  metadata.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetDocument returns a document by ID, or nil when absent.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	row := s.q.QueryRowContext(ctx,
		`SELECT `+sqliteDocumentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanSQLiteDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.External("get document", err)
	}
	return doc, nil
}

// ListDocuments returns documents newest first with limit and offset.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	if err := validateList(limit, offset); err != nil {
		return nil, err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+sqliteDocumentColumns+` FROM documents
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, apperr.External("list documents", err)
	}
	docs, err := collectSQLiteDocuments(rows)
	if err != nil {
		return nil, apperr.External("list documents", err)
	}
	return docs, nil
}

func collectSQLiteDocuments(rows *sql.Rows) ([]*models.Document, error) {
	defer rows.Close()
	docs := []*models.Document{}
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateDocument applies the provided fields of patch and bumps updated_at.
func (s *SQLiteStorage) UpdateDocument(ctx context.Context, id int64, patch models.DocumentPatch) (*models.Document, error) {
	if patch.IsEmpty() {
		return nil, nil
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	var sets []string
	var args []any
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Metadata != nil {
		data, err := patch.Metadata.Encode()
		if err != nil {
			return nil, apperr.Validation("update document", "failed to marshal metadata: %s", err.Error())
		}
		sets = append(sets, "metadata = ?")
		args = append(args, string(data))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx,
		`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, apperr.External("update document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.External("update document", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetDocument(ctx, id)
}

// DeleteDocument removes a document by ID; its embeddings cascade.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, apperr.External("delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.External("delete document", err)
	}
	return n > 0, nil
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var count int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, apperr.External("count documents", err)
	}
	return count, nil
}

// StoreEmbedding supersedes the document's current embedding and inserts vec as the new one.
func (s *SQLiteStorage) StoreEmbedding(ctx context.Context, documentID int64, vec []float32, model string) (*models.Embedding, error) {
	if err := s.opts.checkDimensions("store embedding", vec); err != nil {
		return nil, err
	}
	if !s.inTx {
		var out *models.Embedding
		err := s.WithTx(ctx, func(tx Store) error {
			var err error
			out, err = tx.StoreEmbedding(ctx, documentID, vec, model)
			return err
		})
		return out, err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	if _, err := s.q.ExecContext(ctx,
		`UPDATE embeddings SET superseded_at = ? WHERE document_id = ? AND superseded_at IS NULL`,
		now, documentID,
	); err != nil {
		return nil, apperr.External("store embedding", err)
	}
	emb := &models.Embedding{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Vector:     vec,
		Model:      model,
		CreatedAt:  now,
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO embeddings (id, document_id, embedding, model, created_at) VALUES (?, ?, ?, ?, ?)`,
		emb.ID, emb.DocumentID, vector.EncodeBlob(vec), emb.Model, emb.CreatedAt,
	)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return nil, apperr.NotFound("store embedding", "document %d not found", documentID)
		}
		return nil, apperr.External("store embedding", err)
	}
	return emb, nil
}

// SearchEmbeddings ranks current embeddings by cosine similarity to query.
func (s *SQLiteStorage) SearchEmbeddings(ctx context.Context, query []float32, threshold float64, maxResults int) ([]*models.SearchResult, error) {
	if err := s.opts.checkDimensions("search embeddings", query); err != nil {
		return nil, err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, document_id, title, content, similarity FROM (
			SELECT e.id, e.document_id, d.title, d.content,
			       vec_cosine_similarity(e.embedding, ?) AS similarity
			FROM embeddings e JOIN documents d ON d.id = e.document_id
			WHERE e.superseded_at IS NULL
		 )
		 WHERE similarity > ?
		 ORDER BY similarity DESC, document_id DESC
		 LIMIT ?`,
		vector.EncodeBlob(query), threshold, maxResults,
	)
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
	s.opts.logger.Debug("sqlite similarity search",
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)))
	return results, nil
}

// ListEmbeddings returns every embedding of a document, newest first.
func (s *SQLiteStorage) ListEmbeddings(ctx context.Context, documentID int64) ([]*models.Embedding, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.QueryContext(ctx,
		`SELECT id, document_id, embedding, model, created_at, superseded_at
		 FROM embeddings WHERE document_id = ? ORDER BY created_at DESC, rowid DESC`, documentID)
	if err != nil {
		return nil, apperr.External("list embeddings", err)
	}
	defer rows.Close()

	out := []*models.Embedding{}
	for rows.Next() {
		var e models.Embedding
		var blob []byte
		var superseded sql.NullTime
		if err := rows.Scan(&e.ID, &e.DocumentID, &blob, &e.Model, &e.CreatedAt, &superseded); err != nil {
			return nil, apperr.External("list embeddings", err)
		}
		if e.Vector, err = vector.DecodeBlob(blob); err != nil {
			return nil, apperr.External("list embeddings", err)
		}
		if superseded.Valid {
			t := superseded.Time
			e.SupersededAt = &t
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.External("list embeddings", err)
	}
	return out, nil
}

// CountEmbeddings counts all embedding rows of a document.
func (s *SQLiteStorage) CountEmbeddings(ctx context.Context, documentID int64) (int64, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var count int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE document_id = ?`, documentID).Scan(&count)
	if err != nil {
		return 0, apperr.External("count embeddings", err)
	}
	return count, nil
}

// DocumentsWithoutEmbeddings returns documents lacking a current embedding, oldest first.
func (s *SQLiteStorage) DocumentsWithoutEmbeddings(ctx context.Context, limit int) ([]*models.Document, error) {
	if limit < 1 {
		return nil, apperr.Validation("documents without embeddings", "limit must be at least 1, got %d", limit)
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+sqliteDocumentColumns+` FROM documents d
		 WHERE NOT EXISTS (
			SELECT 1 FROM embeddings e WHERE e.document_id = d.id AND e.superseded_at IS NULL
		 )
		 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.External("documents without embeddings", err)
	}
	docs, err := collectSQLiteDocuments(rows)
	if err != nil {
		return nil, apperr.External("documents without embeddings", err)
	}
	return docs, nil
}

// HasVectorIndexSupport is always false: SQLite scans every embedding.
func (s *SQLiteStorage) HasVectorIndexSupport(ctx context.Context) bool {
	return false
}

// WithTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *SQLiteStorage) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.External("begin transaction", err)
	}
	txStore := *s
	txStore.q = tx
	txStore.inTx = true

	if err := fn(&txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.opts.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.External("commit transaction", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return apperr.External("ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
