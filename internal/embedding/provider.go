// Package embedding turns text into fixed-dimension vectors through pluggable providers.
package embedding

import "context"

// Provider is an external text-to-vector service. EmbedBatch must return one
// vector per input, in input order.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
	Close() error
}

// Result is one generated embedding and the model that produced it.
type Result struct {
	Vector []float32
	Model  string
}
