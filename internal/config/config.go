package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "AIDEBUG_"

// DefaultPath is the config file looked up when none is given.
const DefaultPath = ".aidebug.yml"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (AIDEBUG_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// AIDEBUG_PIPELINE__MIN_LOCAL_SCORE -> pipeline.min_local_score
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Embedding.ForceMock || cfg.Embedding.Provider == ProviderMock {
		if cfg.Embedding.Dimensions <= 0 {
			cfg.Embedding.Dimensions = MockDimensions(cfg.Embedding.Model)
		}
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderMock:   true,
	ProviderOpenAI: true,
	ProviderGoogle: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Embedding.Provider == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if !validProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding.provider %q: must be one of mock, openai, google, ollama", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be non-negative")
	}
	if c.Embedding.Cache.Enabled && c.Embedding.Cache.Capacity <= 0 {
		return fmt.Errorf("embedding.cache.capacity must be positive when the cache is enabled")
	}

	if c.LLM.Enabled {
		if c.LLM.Provider == ProviderMock || !validProviders[c.LLM.Provider] {
			return fmt.Errorf("invalid llm.provider %q: must be one of openai, google, ollama", c.LLM.Provider)
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("llm.model is required")
		}
	}

	p := c.Pipeline
	if p.MaxWorkers < 1 {
		return fmt.Errorf("pipeline.max_workers must be at least 1")
	}
	if p.MinLocalScore < -1 || p.MinLocalScore > 1 {
		return fmt.Errorf("pipeline.min_local_score must be within [-1, 1]")
	}
	if p.ClassifierThreshold < 0 || p.ClassifierThreshold > 1 {
		return fmt.Errorf("pipeline.classifier_threshold must be within [0, 1]")
	}
	if p.ExternalMaxResults < 0 {
		return fmt.Errorf("pipeline.external_max_results must be non-negative")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}

	switch c.Log.Format {
	case "", LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("invalid log.format %q: must be console or json", c.Log.Format)
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}
