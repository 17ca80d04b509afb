package embedding

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/semsearch/internal/config"
)

func TestNewProvider(t *testing.T) {
	t.Setenv("SEMSEARCH_MISSING_KEY", "")
	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		wantErr bool
		model   string
	}{
		{"mock", config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: 8}, false, MockModel},
		{"openai without key", config.EmbeddingConfig{Provider: config.ProviderOpenAI, Model: "m", Dimensions: 8, APIKeyEnv: "SEMSEARCH_MISSING_KEY"}, true, ""},
		{"openai-compatible local server", config.EmbeddingConfig{Provider: config.ProviderOpenAI, Model: "nomic-embed-text", BaseURL: "http://localhost:11434/v1", Dimensions: 768}, false, "nomic-embed-text"},
		{"gemini without key", config.EmbeddingConfig{Provider: config.ProviderGemini, Dimensions: 768, APIKeyEnv: "SEMSEARCH_MISSING_KEY"}, true, ""},
		{"unknown", config.EmbeddingConfig{Provider: "nope"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if p != nil {
					t.Error("provider should be nil on error")
				}
				return
			}
			defer p.Close()
			if p.Model() != tt.model {
				t.Errorf("Model() = %q, want %q", p.Model(), tt.model)
			}
		})
	}
}

func TestNewServiceFromConfig_WithDiskCache(t *testing.T) {
	cfg := config.EmbeddingConfig{
		Provider:      config.ProviderMock,
		Dimensions:    4,
		CacheSize:     10,
		DiskCachePath: filepath.Join(t.TempDir(), "nested", "cache.bolt"),
	}
	svc, cleanup, err := NewServiceFromConfig(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	defer svc.Close()
	if svc.Dimensions() != 4 || svc.Model() != MockModel {
		t.Errorf("unexpected service %d/%s", svc.Dimensions(), svc.Model())
	}
	if _, err := svc.GenerateEmbedding(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
}
