package config

import (
	"strings"
	"time"
)

// ProviderPreset describes the default models for a provider.
type ProviderPreset struct {
	EmbeddingModel string
	Dimensions     int
	ChatModel      string
}

// providerPresets maps each provider to its model choices.
var providerPresets = map[ProviderType]ProviderPreset{
	ProviderMock:   {EmbeddingModel: "mock", Dimensions: 768, ChatModel: ""},
	ProviderOpenAI: {EmbeddingModel: "text-embedding-3-small", Dimensions: 1536, ChatModel: "gpt-4o-mini"},
	ProviderGoogle: {EmbeddingModel: "text-embedding-004", Dimensions: 768, ChatModel: "gemini-1.5-flash"},
	ProviderOllama: {EmbeddingModel: "nomic-embed-text", Dimensions: 768, ChatModel: "llama3"},
}

// GetPreset returns the preset for a provider, falling back to the mock preset.
func GetPreset(provider ProviderType) ProviderPreset {
	if p, ok := providerPresets[provider]; ok {
		return p
	}
	return providerPresets[ProviderMock]
}

// MockDimensions returns the vector size the deterministic provider uses for
// a model name. SBERT-style local models are 384 wide.
func MockDimensions(model string) int {
	m := strings.ToLower(model)
	if strings.Contains(m, "minilm") || strings.Contains(m, "sentence-transformers") || strings.Contains(m, "sbert") {
		return 384
	}
	return 768
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:   ProviderMock,
			Model:      "mock",
			Dimensions: 768,
			Cache: CacheConfig{
				Enabled:  true,
				TTL:      time.Hour,
				Capacity: 2048,
			},
		},
		LLM: LLMConfig{
			Enabled:     false,
			Provider:    ProviderGoogle,
			Model:       "gemini-1.5-flash",
			Timeout:     15 * time.Second,
			Temperature: 0.2,
			MaxTokens:   1024,
		},
		Pipeline: PipelineConfig{
			MaxWorkers:             4,
			Limit:                  5,
			MinLocalScore:          0.62,
			ExternalKnowledge:      false,
			ExternalMaxResults:     5,
			ExternalTimeout:        8 * time.Second,
			PrefilterMinCandidates: 10,
			ClassifierThreshold:    0.35,
			ResultCacheTTL:         30 * time.Minute,
			ResultCacheSize:        256,
		},
		DatabasePath: ".aidebug/aidebug.db",
		Server: ServerConfig{
			Port: 8080,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     LogFormatConsole,
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}
