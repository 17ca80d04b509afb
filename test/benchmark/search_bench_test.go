package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/hyperjump/semsearch/internal/embedding"
	"github.com/hyperjump/semsearch/internal/storage"
	"github.com/hyperjump/semsearch/internal/vector"
)

func randomVector(r *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func BenchmarkCosineSimilarity(b *testing.B) {
	for _, dims := range []int{384, 768, 1536} {
		b.Run(fmt.Sprintf("dims=%d", dims), func(b *testing.B) {
			r := rand.New(rand.NewSource(1))
			x, y := randomVector(r, dims), randomVector(r, dims)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = vector.CosineSimilarity(x, y)
			}
		})
	}
}

func BenchmarkBlobRoundTrip(b *testing.B) {
	v := randomVector(rand.New(rand.NewSource(2)), 1536)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = vector.DecodeBlob(vector.EncodeBlob(v))
	}
}

func BenchmarkMockEmbed(b *testing.B) {
	svc := embedding.NewService(embedding.NewMockProvider(384))
	defer svc.Close()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Distinct text per iteration keeps the cache out of the measurement.
		_, _ = svc.GenerateEmbedding(ctx, fmt.Sprintf("benchmark text %d", i))
	}
}

func BenchmarkSQLiteSearchEmbeddings(b *testing.B) {
	const dims, docs = 384, 1000
	store, err := storage.NewSQLiteStorage(filepath.Join(b.TempDir(), "bench.db"), storage.WithDimensions(dims))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	r := rand.New(rand.NewSource(3))
	for i := 0; i < docs; i++ {
		doc, err := store.CreateDocument(ctx, fmt.Sprintf("doc %d", i), "content", nil)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := store.StoreEmbedding(ctx, doc.ID, randomVector(r, dims), "bench"); err != nil {
			b.Fatal(err)
		}
	}
	query := randomVector(r, dims)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.SearchEmbeddings(ctx, query, 0.1, 10); err != nil {
			b.Fatal(err)
		}
	}
}
