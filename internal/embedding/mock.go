package embedding

import (
	"context"
	"math"
	"sync"
)

// MockModel is the model identifier reported by MockProvider.
const MockModel = "mock-embedding"

// MockProvider is a deterministic provider for tests and offline use. The same
// text always maps to the same unit vector. It records every call.
type MockProvider struct {
	dimensions int

	mu    sync.Mutex
	calls int
	texts []string
	err   error
}

// NewMockProvider returns a provider that produces deterministic embeddings of the given dimensions.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockProvider{dimensions: dimensions}
}

// EmbedBatch returns one hash-derived vector per text, or the injected error.
func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls++
	p.texts = append(p.texts, texts...)
	err := p.err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.vectorFor(text)
	}
	return out, nil
}

func (p *MockProvider) vectorFor(text string) []float32 {
	h := HashString(text)
	emb := make([]float32, p.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] = float32(float64(emb[i]) * norm)
		}
	}
	return emb
}

// Vector returns the embedding the provider would produce for text without recording a call.
func (p *MockProvider) Vector(text string) []float32 {
	return p.vectorFor(text)
}

// FailWith makes subsequent calls return err; nil restores normal behaviour.
func (p *MockProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls returns the number of EmbedBatch invocations.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Texts returns every input seen so far, in call order.
func (p *MockProvider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

// Model returns MockModel.
func (p *MockProvider) Model() string { return MockModel }

// Dimensions returns the embedding dimension.
func (p *MockProvider) Dimensions() int { return p.dimensions }

// Close is a no-op.
func (p *MockProvider) Close() error { return nil }
