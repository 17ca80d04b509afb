package vector

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hyperjump/semsearch/internal/apperr"
)

const eps = 1e-6

func randomVector(r *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", []float32{}, []float32{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > eps {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_SelfAndSymmetry(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		a := randomVector(r, 32)
		b := randomVector(r, 32)
		self, _ := CosineSimilarity(a, a)
		if math.Abs(self-1) > eps {
			t.Fatalf("cos(v,v) = %v", self)
		}
		ab, _ := CosineSimilarity(a, b)
		ba, _ := CosineSimilarity(b, a)
		if ab != ba {
			t.Fatalf("asymmetric: %v vs %v", ab, ba)
		}
	}
}

func TestDimensionMismatch(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{1, 2}
	if _, err := CosineSimilarity(a, b); !apperr.Is(err, apperr.KindDimensionMismatch) {
		t.Errorf("CosineSimilarity err = %v", err)
	}
	if _, err := EuclideanDistance(a, b); !apperr.Is(err, apperr.KindDimensionMismatch) {
		t.Errorf("EuclideanDistance err = %v", err)
	}
	if _, err := CosineDistance(a, b); !apperr.Is(err, apperr.KindDimensionMismatch) {
		t.Errorf("CosineDistance err = %v", err)
	}
}

func TestEuclideanDistance(t *testing.T) {
	got, err := EuclideanDistance([]float32{0, 0}, []float32{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-5) > eps {
		t.Errorf("EuclideanDistance() = %v, want 5", got)
	}
}

func TestNormalize(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		v := randomVector(r, 16)
		if n := L2Norm(Normalize(v)); math.Abs(n-1) > 1e-5 {
			t.Fatalf("norm = %v", n)
		}
	}
	zero := []float32{0, 0, 0}
	out := Normalize(zero)
	for i := range zero {
		if out[i] != 0 {
			t.Fatal("zero vector must be returned unchanged")
		}
	}
}

func TestCombine(t *testing.T) {
	v := []float32{3, 4}
	got, err := Combine([][]float32{v}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	want := Normalize(v)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Combine([v],[1]) = %v, want %v", got, want)
		}
	}

	// scale of weights does not matter
	a, b := []float32{1, 0}, []float32{0, 1}
	w1, _ := Combine([][]float32{a, b}, []float64{1, 3})
	w2, _ := Combine([][]float32{a, b}, []float64{10, 30})
	for i := range w1 {
		if math.Abs(float64(w1[i]-w2[i])) > eps {
			t.Fatalf("weights not renormalized: %v vs %v", w1, w2)
		}
	}

	// mismatched weight count falls back to uniform
	u, _ := Combine([][]float32{a, b}, []float64{1})
	if math.Abs(float64(u[0]-u[1])) > eps {
		t.Errorf("expected uniform weights, got %v", u)
	}
}

func TestCombine_Errors(t *testing.T) {
	if _, err := Combine(nil, nil); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("empty input err = %v", err)
	}
	if _, err := Combine([][]float32{{1, 2}, {1}}, nil); !apperr.Is(err, apperr.KindDimensionMismatch) {
		t.Errorf("mismatch err = %v", err)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, float32(math.Pi)}
	out, err := DecodeBlob(EncodeBlob(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d", len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, out[i], in[i])
		}
	}
	if _, err := DecodeBlob([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
