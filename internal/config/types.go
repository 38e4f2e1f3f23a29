package config

import "time"

// ProviderType identifies an embedding or LLM provider.
type ProviderType string

const (
	ProviderMock   ProviderType = "mock"
	ProviderOpenAI ProviderType = "openai"
	ProviderGoogle ProviderType = "google"
	ProviderOllama ProviderType = "ollama"
)

// LogFormat selects the zap encoder.
type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

// Config is the top-level aidebug configuration, corresponding to .aidebug.yml.
type Config struct {
	Embedding    EmbeddingConfig `yaml:"embedding" koanf:"embedding"`
	LLM          LLMConfig       `yaml:"llm" koanf:"llm"`
	Pipeline     PipelineConfig  `yaml:"pipeline" koanf:"pipeline"`
	DatabasePath string          `yaml:"database_path" koanf:"database_path"`
	Server       ServerConfig    `yaml:"server" koanf:"server"`
	Log          LogConfig       `yaml:"log" koanf:"log"`
}

// EmbeddingConfig selects the embedding provider and its cache.
type EmbeddingConfig struct {
	Provider   ProviderType `yaml:"provider" koanf:"provider"`
	Model      string       `yaml:"model" koanf:"model"`
	Dimensions int          `yaml:"dimensions" koanf:"dimensions"`
	// ForceMock selects the deterministic provider regardless of Provider.
	ForceMock bool        `yaml:"force_mock" koanf:"force_mock"`
	BaseURL   string      `yaml:"base_url,omitempty" koanf:"base_url"`
	Cache     CacheConfig `yaml:"cache" koanf:"cache"`
}

// CacheConfig controls the in-process embedding cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" koanf:"enabled"`
	TTL      time.Duration `yaml:"ttl" koanf:"ttl"`
	Capacity int           `yaml:"capacity" koanf:"capacity"`
}

// LLMConfig controls the analysis renderer.
type LLMConfig struct {
	Enabled     bool          `yaml:"enabled" koanf:"enabled"`
	Provider    ProviderType  `yaml:"provider" koanf:"provider"`
	Model       string        `yaml:"model" koanf:"model"`
	Timeout     time.Duration `yaml:"timeout" koanf:"timeout"`
	Temperature float64       `yaml:"temperature" koanf:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" koanf:"max_tokens"`
	BaseURL     string        `yaml:"base_url,omitempty" koanf:"base_url"`
	// RPM caps requests per minute; zero disables rate limiting.
	RPM int `yaml:"rpm" koanf:"rpm"`
}

// PipelineConfig holds the retrieval orchestrator knobs.
type PipelineConfig struct {
	MaxWorkers             int           `yaml:"max_workers" koanf:"max_workers"`
	Limit                  int           `yaml:"limit" koanf:"limit"`
	MinLocalScore          float64       `yaml:"min_local_score" koanf:"min_local_score"`
	ExternalKnowledge      bool          `yaml:"external_knowledge" koanf:"external_knowledge"`
	ExternalMaxResults     int           `yaml:"external_max_results" koanf:"external_max_results"`
	ExternalTimeout        time.Duration `yaml:"external_timeout" koanf:"external_timeout"`
	ExternalBaseURL        string        `yaml:"external_base_url,omitempty" koanf:"external_base_url"`
	PrefilterMinCandidates int           `yaml:"prefilter_min_candidates" koanf:"prefilter_min_candidates"`
	ClassifierThreshold    float64       `yaml:"classifier_threshold" koanf:"classifier_threshold"`
	ResultCacheTTL         time.Duration `yaml:"result_cache_ttl" koanf:"result_cache_ttl"`
	ResultCacheSize        int           `yaml:"result_cache_size" koanf:"result_cache_size"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}

// LogConfig holds logging settings. An empty File logs to stderr only.
type LogConfig struct {
	Level      string    `yaml:"level" koanf:"level"`
	Format     LogFormat `yaml:"format" koanf:"format"`
	File       string    `yaml:"file,omitempty" koanf:"file"`
	MaxSizeMB  int       `yaml:"max_size_mb" koanf:"max_size_mb"`
	MaxBackups int       `yaml:"max_backups" koanf:"max_backups"`
}
