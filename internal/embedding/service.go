package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/pkg/utils"
)

const (
	// DefaultMaxInputChars is the provider input budget in characters.
	DefaultMaxInputChars = 8191
	// DefaultTimeout bounds a single provider round trip.
	DefaultTimeout = 30 * time.Second
)

// Service wraps a Provider with truncation, timeouts, dimension checks and caching.
type Service struct {
	provider      Provider
	caches        []Cache
	maxInputChars int
	timeout       time.Duration
	logger        *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache adds a cache consulted before the provider. Caches are checked in
// the order they were added; a hit in a later cache back-fills earlier ones.
func WithCache(c Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.caches = append(s.caches, c)
		}
	}
}

// WithMaxInputChars overrides the truncation limit. Non-positive values are ignored.
func WithMaxInputChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxInputChars = n
		}
	}
}

// WithTimeout overrides the per-call provider timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService returns a Service over p.
func NewService(p Provider, opts ...Option) *Service {
	s := &Service{
		provider:      p,
		maxInputChars: DefaultMaxInputChars,
		timeout:       DefaultTimeout,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the provider's model identifier.
func (s *Service) Model() string {
	return s.provider.Model()
}

// Dimensions returns the configured vector dimension.
func (s *Service) Dimensions() int {
	return s.provider.Dimensions()
}

// Close releases the provider.
func (s *Service) Close() error {
	return s.provider.Close()
}

// GenerateEmbedding embeds a single text. Input longer than the limit is truncated silently.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) (Result, error) {
	results, err := s.GenerateEmbeddingsBatch(ctx, []string{text})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// GenerateDocumentEmbedding embeds the labeled title and content block of a document.
func (s *Service) GenerateDocumentEmbedding(ctx context.Context, title, content string) (Result, error) {
	return s.GenerateEmbedding(ctx, models.EmbeddingText(title, content))
}

// GenerateEmbeddingsBatch embeds texts with one provider round trip for all
// cache misses. Result order matches input order.
func (s *Service) GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return []Result{}, nil
	}
	model := s.provider.Model()
	results := make([]Result, len(texts))
	inputs := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, apperr.Validation("generate embedding", "text %d is empty", i)
		}
		inputs[i] = utils.TruncateRunes(text, s.maxInputChars)
		if vec, ok := s.lookup(model, inputs[i]); ok {
			results[i] = Result{Vector: vec, Model: model}
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, inputs[i])
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := s.call(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		results[i] = Result{Vector: vectors[j], Model: model}
		s.store(model, inputs[i], vectors[j])
	}
	return results, nil
}

func (s *Service) call(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	vectors, err := s.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, apperr.External("embedding provider", err)
	}
	if len(vectors) != len(texts) {
		return nil, apperr.External("embedding provider",
			fmt.Errorf("returned %d embeddings for %d inputs", len(vectors), len(texts)))
	}
	dims := s.provider.Dimensions()
	for _, v := range vectors {
		if len(v) != dims {
			return nil, apperr.Dimension("embedding provider", len(v), dims)
		}
	}
	s.logger.Debug("embedded batch",
		zap.String("model", s.provider.Model()),
		zap.Int("count", len(texts)),
		zap.Duration("duration", time.Since(start)))
	return vectors, nil
}

func (s *Service) lookup(model, text string) ([]float32, bool) {
	dims := s.provider.Dimensions()
	key := CacheKey(model, dims, text)
	for i, c := range s.caches {
		vec, ok := c.Get(key)
		if !ok {
			continue
		}
		if len(vec) != dims {
			// Stale entry; the provider result replaces it.
			s.logger.Debug("ignoring cached embedding of the wrong width",
				zap.Int("cached", len(vec)), zap.Int("dimensions", dims))
			return nil, false
		}
		for _, earlier := range s.caches[:i] {
			earlier.Set(key, vec)
		}
		return vec, true
	}
	return nil, false
}

func (s *Service) store(model, text string, vec []float32) {
	if len(s.caches) == 0 {
		return
	}
	key := CacheKey(model, s.provider.Dimensions(), text)
	for _, c := range s.caches {
		c.Set(key, vec)
	}
}
