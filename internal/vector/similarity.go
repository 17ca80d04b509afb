// Package vector provides similarity math over float32 embeddings.
package vector

import (
	"math"

	"github.com/hyperjump/semsearch/internal/apperr"
)

// CosineSimilarity returns dot(a,b)/(|a|*|b|), in [-1, 1].
// Returns 0 when either vector has zero norm.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.Dimension("cosine similarity", len(b), len(a))
	}
	var dot, na, nb float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// CosineDistance returns 1 - CosineSimilarity, matching pgvector's <=> operator.
func CosineDistance(a, b []float32) (float64, error) {
	s, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - s, nil
}

// EuclideanDistance returns the L2 norm of a-b.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.Dimension("euclidean distance", len(b), len(a))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize returns v scaled to unit L2 norm as a new slice.
// A zero-norm v is returned unchanged.
func Normalize(v []float32) []float32 {
	norm := L2Norm(v)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Combine returns the normalized weighted sum of vectors. Weights default to
// uniform when nil or of the wrong length, and are rescaled to sum to 1.
func Combine(vectors [][]float32, weights []float64) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, apperr.Validation("combine embeddings", "at least one vector is required")
	}
	dim := len(vectors[0])
	for _, v := range vectors[1:] {
		if len(v) != dim {
			return nil, apperr.Dimension("combine embeddings", len(v), dim)
		}
	}

	w := make([]float64, len(vectors))
	var total float64
	if len(weights) == len(vectors) {
		for i, x := range weights {
			w[i] = x
			total += x
		}
	}
	if total == 0 {
		for i := range w {
			w[i] = 1
		}
		total = float64(len(w))
	}

	sum := make([]float64, dim)
	for i, v := range vectors {
		scale := w[i] / total
		for j, x := range v {
			sum[j] += float64(x) * scale
		}
	}
	out := make([]float32, dim)
	for j, x := range sum {
		out[j] = float32(x)
	}
	return Normalize(out), nil
}
