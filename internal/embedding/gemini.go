package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured for the gemini provider.
const DefaultGeminiModel = "text-embedding-004"

// GeminiProvider embeds text with the Gemini embedding API.
type GeminiProvider struct {
	client     *genai.Client
	em         *genai.EmbeddingModel
	model      string
	dimensions int
}

// NewGeminiProvider creates a Gemini client for model.
func NewGeminiProvider(ctx context.Context, apiKey, model string, dimensions int) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{
		client:     client,
		em:         client.EmbeddingModel(model),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// EmbedBatch embeds all texts with one BatchEmbedContents call.
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	batch := p.em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := p.em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embedding failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("gemini returned an empty response")
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("gemini response is missing embedding for input %d", i)
		}
		vec := make([]float32, len(e.Values))
		for j, v := range e.Values {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string { return p.model }

// Dimensions returns the configured vector dimension.
func (p *GeminiProvider) Dimensions() int { return p.dimensions }

// Close closes the client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
