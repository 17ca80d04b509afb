package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
)

const testDims = 4

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"), WithDimensions(testDims))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func TestSQLiteStorage_CRUD(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	doc, err := store.CreateDocument(ctx, "Title", "Content", models.Metadata{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID <= 0 {
		t.Errorf("expected positive id, got %d", doc.ID)
	}
	if doc.CreatedAt.IsZero() || !doc.CreatedAt.Equal(doc.UpdatedAt) {
		t.Errorf("timestamps not initialised: %+v", doc)
	}

	got, err := store.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Title" || got.Content != "Content" || got.Metadata["k"] != "v" {
		t.Errorf("got %+v", got)
	}

	updated, err := store.UpdateDocument(ctx, doc.ID, models.DocumentPatch{Title: strPtr("Updated")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Updated" || updated.Content != "Content" {
		t.Errorf("unexpected update result %+v", updated)
	}
	if updated.UpdatedAt.Before(doc.UpdatedAt) {
		t.Error("updated_at moved backwards")
	}

	count, err := store.CountDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	deleted, err := store.DeleteDocument(ctx, doc.ID)
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v", deleted, err)
	}
	deleted, err = store.DeleteDocument(ctx, doc.ID)
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v; want false, nil", deleted, err)
	}
	got, err = store.GetDocument(ctx, doc.ID)
	if err != nil || got != nil {
		t.Errorf("get after delete = %+v, %v", got, err)
	}
}

func TestSQLiteStorage_CreateValidation(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	tests := []struct {
		name           string
		title, content string
	}{
		{"empty title", "", "content"},
		{"blank content", "title", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateDocument(ctx, tt.title, tt.content, nil)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSQLiteStorage_UpdateEdgeCases(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	doc, err := store.CreateDocument(ctx, "a", "b", nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.UpdateDocument(ctx, doc.ID, models.DocumentPatch{})
	if err != nil || got != nil {
		t.Errorf("empty patch = %+v, %v; want nil, nil", got, err)
	}
	got, err = store.UpdateDocument(ctx, 9999, models.DocumentPatch{Title: strPtr("x")})
	if err != nil || got != nil {
		t.Errorf("missing id = %+v, %v; want nil, nil", got, err)
	}
	_, err = store.UpdateDocument(ctx, doc.ID, models.DocumentPatch{Content: strPtr("")})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("empty content should be a validation error, got %v", err)
	}

	meta := models.Metadata{"tags": []any{"x"}}
	got, err = store.UpdateDocument(ctx, doc.ID, models.DocumentPatch{Metadata: &meta})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "a" || !got.Metadata.Equal(meta) {
		t.Errorf("metadata update = %+v", got)
	}
}

func TestSQLiteStorage_ListOrderingAndPagination(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	var ids []int64
	for _, title := range []string{"one", "two", "three", "four", "five"} {
		doc, err := store.CreateDocument(ctx, title, "content "+title, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, doc.ID)
	}

	first, err := store.ListDocuments(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || first[0].ID != ids[4] || first[1].ID != ids[3] {
		t.Errorf("first page = %v", docIDs(first))
	}
	last, err := store.ListDocuments(ctx, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 1 || last[0].ID != ids[0] {
		t.Errorf("last page = %v", docIDs(last))
	}
	past, err := store.ListDocuments(ctx, 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(past) != 0 {
		t.Errorf("past the end should be empty, got %v", docIDs(past))
	}

	if _, err := store.ListDocuments(ctx, 0, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("limit 0 should be rejected, got %v", err)
	}
	if _, err := store.ListDocuments(ctx, 1, -1); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("negative offset should be rejected, got %v", err)
	}
}

func docIDs(docs []*models.Document) []int64 {
	out := make([]int64, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestSQLiteStorage_EmbeddingSupersede(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	doc, err := store.CreateDocument(ctx, "t", "c", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.StoreEmbedding(ctx, doc.ID, []float32{1, 0, 0, 0}, "m1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := store.StoreEmbedding(ctx, doc.ID, []float32{0, 1, 0, 0}, "m2")
	if err != nil {
		t.Fatal(err)
	}

	n, err := store.CountEmbeddings(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountEmbeddings = %d, want 2 (history kept)", n)
	}

	list, err := store.ListEmbeddings(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("ListEmbeddings len = %d", len(list))
	}
	if list[0].ID != second.ID || list[0].SupersededAt != nil {
		t.Errorf("newest embedding should be current: %+v", list[0])
	}
	if list[1].SupersededAt == nil {
		t.Error("older embedding should be superseded")
	}

	// Only the current vector participates in search.
	results, err := store.SearchEmbeddings(ctx, []float32{1, 0, 0, 0}, 0.5, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("superseded vector matched: %+v", results[0])
	}
}

func TestSQLiteStorage_SearchEmbeddings(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	vecs := map[string][]float32{
		"exact":   {1, 0, 0, 0},
		"near":    {0.9, 0.1, 0, 0},
		"far":     {0, 0, 1, 0},
		"partial": {0.5, 0.5, 0.5, 0.5},
	}
	ids := map[int64]string{}
	for _, name := range []string{"exact", "near", "far", "partial"} {
		doc, err := store.CreateDocument(ctx, name, name+" content", nil)
		if err != nil {
			t.Fatal(err)
		}
		ids[doc.ID] = name
		if _, err := store.StoreEmbedding(ctx, doc.ID, vecs[name], "test"); err != nil {
			t.Fatal(err)
		}
	}

	results, err := store.SearchEmbeddings(ctx, []float32{1, 0, 0, 0}, 0.7, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results above 0.7, got %d", len(results))
	}
	if ids[results[0].DocumentID] != "exact" || math.Abs(results[0].Similarity-1) > 1e-6 {
		t.Errorf("top result = %+v", results[0])
	}
	if ids[results[1].DocumentID] != "near" {
		t.Errorf("second result = %+v", results[1])
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Error("results not sorted by similarity")
		}
	}

	limited, err := store.SearchEmbeddings(ctx, []float32{1, 0, 0, 0}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("maxResults 1 returned %d", len(limited))
	}

	// Strictly greater than the threshold.
	none, err := store.SearchEmbeddings(ctx, []float32{1, 0, 0, 0}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("threshold 1 should exclude everything, got %d", len(none))
	}
}

func TestSQLiteStorage_EmbeddingErrors(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	doc, err := store.CreateDocument(ctx, "t", "c", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.StoreEmbedding(ctx, doc.ID, []float32{1, 2}, "m"); !apperr.Is(err, apperr.KindDimensionMismatch) {
		t.Errorf("short vector: expected dimension mismatch, got %v", err)
	}
	if _, err := store.StoreEmbedding(ctx, doc.ID, nil, "m"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("empty vector: expected validation, got %v", err)
	}
	if _, err := store.SearchEmbeddings(ctx, []float32{1, 2, 3}, 0.5, 10); !apperr.Is(err, apperr.KindDimensionMismatch) {
		t.Errorf("search: expected dimension mismatch, got %v", err)
	}
	if _, err := store.StoreEmbedding(ctx, 424242, []float32{1, 0, 0, 0}, "m"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("missing document: expected not found, got %v", err)
	}
}

func TestSQLiteStorage_SearchStoredWidthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dims.db")
	ctx := context.Background()

	narrow, err := NewSQLiteStorage(path, WithDimensions(4))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := narrow.CreateDocument(ctx, "t", "c", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := narrow.StoreEmbedding(ctx, doc.ID, []float32{1, 0, 0, 0}, "m"); err != nil {
		t.Fatal(err)
	}
	if err := narrow.Close(); err != nil {
		t.Fatal(err)
	}

	wide, err := NewSQLiteStorage(path, WithDimensions(8))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = wide.Close() })

	_, err = wide.SearchEmbeddings(ctx, []float32{1, 0, 0, 0, 0, 0, 0, 0}, 0, 10)
	if !apperr.Is(err, apperr.KindDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v (kind %v)", err, apperr.KindOf(err))
	}
	if want := "vector dimension mismatch: got 4, expected 8"; apperr.Message(err) != want {
		t.Errorf("message = %q, want %q", apperr.Message(err), want)
	}
}

func TestSQLiteStorage_DeleteCascades(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	doc, err := store.CreateDocument(ctx, "t", "c", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.StoreEmbedding(ctx, doc.ID, []float32{1, 0, 0, 0}, "m"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountEmbeddings(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("embeddings left after delete: %d", n)
	}
}

func TestSQLiteStorage_WithTxRollback(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Store) error {
		doc, err := tx.CreateDocument(ctx, "t", "c", nil)
		if err != nil {
			return err
		}
		if _, err := tx.StoreEmbedding(ctx, doc.ID, []float32{1, 0, 0, 0}, "m"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v", err)
	}
	count, err := store.CountDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("rolled back transaction left %d documents", count)
	}

	err = store.WithTx(ctx, func(tx Store) error {
		_, err := tx.CreateDocument(ctx, "t", "c", nil)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if count, _ := store.CountDocuments(ctx); count != 1 {
		t.Errorf("committed transaction count = %d, want 1", count)
	}
}

func TestSQLiteStorage_DocumentsWithoutEmbeddings(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	var docs []*models.Document
	for _, title := range []string{"a", "b", "c"} {
		doc, err := store.CreateDocument(ctx, title, "content", nil)
		if err != nil {
			t.Fatal(err)
		}
		docs = append(docs, doc)
	}
	if _, err := store.StoreEmbedding(ctx, docs[1].ID, []float32{1, 0, 0, 0}, "m"); err != nil {
		t.Fatal(err)
	}

	missing, err := store.DocumentsWithoutEmbeddings(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := docIDs(missing)
	if len(got) != 2 || got[0] != docs[0].ID || got[1] != docs[2].ID {
		t.Errorf("DocumentsWithoutEmbeddings = %v", got)
	}
	if _, err := store.DocumentsWithoutEmbeddings(ctx, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("limit 0 should be rejected, got %v", err)
	}
}

func TestSQLiteStorage_VectorIndexAndPing(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	if store.HasVectorIndexSupport(ctx) {
		t.Error("sqlite should report no vector index")
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatal(err)
	}
}
