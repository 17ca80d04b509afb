package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/config"
)

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		key := cfg.APIKey()
		if key == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
		}
		return nonNil(NewOpenAIProvider(key, cfg.Model, cfg.BaseURL, cfg.Dimensions))
	case config.ProviderGemini:
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
		}
		return nonNil(NewGeminiProvider(ctx, key, cfg.Model, cfg.Dimensions))
	case config.ProviderONNX:
		return nonNil(NewONNXProvider(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens))
	case config.ProviderMock:
		return NewMockProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// nonNil keeps a typed nil pointer from escaping as a non-nil Provider.
func nonNil[P Provider](p P, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewServiceFromConfig builds the provider and wraps it in a Service with the
// configured caches. The returned cleanup closes the disk cache, if any; the
// provider is closed by Service.Close.
func NewServiceFromConfig(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (*Service, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []Option{
		WithMaxInputChars(cfg.MaxInputChars),
		WithTimeout(cfg.Timeout),
		WithLogger(logger),
	}
	if cfg.CacheSize > 0 {
		opts = append(opts, WithCache(NewEmbeddingCache(cfg.CacheSize)))
	}
	cleanup := func() {}
	if cfg.DiskCachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DiskCachePath), 0755); err != nil {
			provider.Close()
			return nil, nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		disk, err := NewBoltCache(cfg.DiskCachePath, logger)
		if err != nil {
			provider.Close()
			return nil, nil, err
		}
		opts = append(opts, WithCache(disk))
		cleanup = func() {
			if err := disk.Close(); err != nil {
				logger.Warn("failed to close embedding cache", zap.Error(err))
			}
		}
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", provider.Model()),
		zap.Int("dimensions", provider.Dimensions()))
	return NewService(provider, opts...), cleanup, nil
}
