package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
)

// pgSchema creates the pgvector extension, tables, the HNSW index over current
// embeddings, the updated_at trigger and the semantic_search function.
// The single %d is the vector width.
const pgSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL CHECK (title <> ''),
	content TEXT NOT NULL CHECK (content <> ''),
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS embeddings (
	id UUID PRIMARY KEY,
	document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	embedding vector(%[1]d) NOT NULL,
	model TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	superseded_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_embeddings_document_id ON embeddings (document_id);

CREATE INDEX IF NOT EXISTS idx_embeddings_hnsw ON embeddings
	USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64)
	WHERE superseded_at IS NULL;

CREATE OR REPLACE FUNCTION update_updated_at_column() RETURNS TRIGGER AS $$
BEGIN
	NEW.updated_at = now();
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS update_documents_updated_at ON documents;
CREATE TRIGGER update_documents_updated_at
	BEFORE UPDATE ON documents
	FOR EACH ROW EXECUTE FUNCTION update_updated_at_column();

CREATE OR REPLACE FUNCTION semantic_search(
	query_embedding vector(%[1]d),
	similarity_threshold float DEFAULT 0.7,
	max_results int DEFAULT 10
)
RETURNS TABLE (id uuid, document_id bigint, title text, content text, similarity float)
LANGUAGE sql STABLE AS $$
	SELECT e.id, e.document_id, d.title, d.content,
	       (1 - (e.embedding <=> query_embedding))::float AS similarity
	FROM embeddings e
	JOIN documents d ON d.id = e.document_id
	WHERE e.superseded_at IS NULL
	  AND 1 - (e.embedding <=> query_embedding) > similarity_threshold
	ORDER BY e.embedding <=> query_embedding
	LIMIT max_results
$$;
`

// EnsureSchema creates or updates the schema for vectors of the configured width.
// Pooled connections are recycled afterwards so pgvector types get registered.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s.opts.dimensions <= 0 {
		return apperr.Validation("ensure schema", "vector dimensions must be configured")
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(pgSchema, s.opts.dimensions)); err != nil {
		return apperr.External("ensure schema", err)
	}
	s.pool.Reset()
	s.opts.logger.Info("database schema ready", zap.Int("dimensions", s.opts.dimensions))
	return nil
}
