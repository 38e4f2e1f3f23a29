package llm

import (
	"fmt"
	"os"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

const defaultOllamaHost = "http://localhost:11434"

// NewProvider creates an LLM provider from configuration. Credentials come
// from the provider's conventional environment variable. When cfg.RPM is
// positive the provider is wrapped with a rate limiter.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	model := cfg.Model
	if model == "" {
		model = config.GetPreset(cfg.Provider).ChatModel
	}

	var p Provider
	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderGoogle:
		envVar := config.APIKeyEnvVar(cfg.Provider)
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			return nil, rcaerr.Newf(rcaerr.KindProvider, "llm provider", "%s environment variable is not set", envVar)
		}
		if cfg.Provider == config.ProviderOpenAI {
			p = NewOpenAIProvider(apiKey, model, cfg.BaseURL)
		} else {
			p = NewGoogleProvider(apiKey, model, cfg.BaseURL)
		}

	case config.ProviderOllama:
		host := cfg.BaseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = defaultOllamaHost
		}
		p = NewOllamaProvider(host, model)

	default:
		return nil, rcaerr.New(rcaerr.KindProvider, "llm provider", fmt.Errorf("unsupported provider type: %s", cfg.Provider))
	}

	if cfg.RPM > 0 {
		p = NewRateLimitedProvider(p, cfg.RPM)
	}
	return p, nil
}
