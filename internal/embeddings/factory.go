package embeddings

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

// New selects an embedder from configuration alone. ForceMock always wins;
// otherwise the named provider is used or an rcaerr.ErrProvider is returned.
// There is no fallback from one provider to another.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	provider := cfg.Provider
	if cfg.ForceMock {
		provider = config.ProviderMock
	}

	switch provider {
	case config.ProviderMock:
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = config.MockDimensions(cfg.Model)
		}
		return NewMockEmbedder(cfg.Model, dims), nil

	case config.ProviderOpenAI:
		envVar := config.APIKeyEnvVar(config.ProviderOpenAI)
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			return nil, rcaerr.Newf(rcaerr.KindProvider, "embedding provider", "%s is not set", envVar)
		}
		return NewOpenAIEmbedder(apiKey, OpenAIModel(cfg.Model), cfg.BaseURL), nil

	case config.ProviderGoogle:
		envVar := config.APIKeyEnvVar(config.ProviderGoogle)
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			return nil, rcaerr.Newf(rcaerr.KindProvider, "embedding provider", "%s is not set", envVar)
		}
		return NewGoogleEmbedder(apiKey, GoogleModel(cfg.Model), cfg.BaseURL), nil

	case config.ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_HOST")
		}
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = 768
		}
		return NewOllamaEmbedder(model, dims, baseURL), nil

	default:
		return nil, rcaerr.Newf(rcaerr.KindProvider, "embedding provider", "unsupported embedding provider %q", cfg.Provider)
	}
}

// NewServiceFromConfig builds the embedder and, when enabled, its cache.
func NewServiceFromConfig(cfg config.EmbeddingConfig, logger *zap.Logger) (*Service, error) {
	embedder, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	var cache *Cache
	if cfg.Cache.Enabled {
		cache = NewCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	}
	return NewService(embedder, cache, logger), nil
}
