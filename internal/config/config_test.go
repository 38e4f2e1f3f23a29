package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Embedding.Provider != ProviderMock {
		t.Errorf("expected default embedding provider %q, got %q", ProviderMock, cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected default dimensions 768, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Pipeline.MaxWorkers != 4 {
		t.Errorf("expected default max_workers 4, got %d", cfg.Pipeline.MaxWorkers)
	}
	if cfg.Pipeline.MinLocalScore != 0.62 {
		t.Errorf("expected default min_local_score 0.62, got %f", cfg.Pipeline.MinLocalScore)
	}
	if cfg.Pipeline.ClassifierThreshold != 0.35 {
		t.Errorf("expected default classifier_threshold 0.35, got %f", cfg.Pipeline.ClassifierThreshold)
	}
	if cfg.LLM.Timeout != 15*time.Second {
		t.Errorf("expected default llm timeout 15s, got %s", cfg.LLM.Timeout)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.aidebug.yml")

	original := DefaultConfig()
	original.Embedding.Provider = ProviderOpenAI
	original.Embedding.Model = "text-embedding-3-small"
	original.Embedding.Dimensions = 1536
	original.Embedding.Cache.TTL = 10 * time.Minute
	original.Pipeline.Limit = 8
	original.Pipeline.ExternalKnowledge = true
	original.LLM.Timeout = 20 * time.Second
	original.DatabasePath = "data/issues.db"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Embedding.Provider != original.Embedding.Provider {
		t.Errorf("embedding.provider: got %q, want %q", loaded.Embedding.Provider, original.Embedding.Provider)
	}
	if loaded.Embedding.Dimensions != 1536 {
		t.Errorf("embedding.dimensions: got %d, want 1536", loaded.Embedding.Dimensions)
	}
	if loaded.Embedding.Cache.TTL != 10*time.Minute {
		t.Errorf("embedding.cache.ttl: got %s, want 10m", loaded.Embedding.Cache.TTL)
	}
	if loaded.Pipeline.Limit != 8 {
		t.Errorf("pipeline.limit: got %d, want 8", loaded.Pipeline.Limit)
	}
	if !loaded.Pipeline.ExternalKnowledge {
		t.Error("pipeline.external_knowledge: got false, want true")
	}
	if loaded.LLM.Timeout != 20*time.Second {
		t.Errorf("llm.timeout: got %s, want 20s", loaded.LLM.Timeout)
	}
	if loaded.DatabasePath != original.DatabasePath {
		t.Errorf("database_path: got %q, want %q", loaded.DatabasePath, original.DatabasePath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Embedding.Provider != ProviderMock {
		t.Errorf("expected default provider, got %q", cfg.Embedding.Provider)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yml")
	data := "pipeline:\n  limit: 12\n  external_timeout: 3s\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.Limit != 12 {
		t.Errorf("limit: got %d, want 12", cfg.Pipeline.Limit)
	}
	if cfg.Pipeline.ExternalTimeout != 3*time.Second {
		t.Errorf("external_timeout: got %s, want 3s", cfg.Pipeline.ExternalTimeout)
	}
	if cfg.Pipeline.MaxWorkers != 4 {
		t.Errorf("max_workers should keep default 4, got %d", cfg.Pipeline.MaxWorkers)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("AIDEBUG_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("AIDEBUG_PIPELINE__MIN_LOCAL_SCORE", "0.5")
	t.Setenv("AIDEBUG_EMBEDDING__FORCE_MOCK", "true")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DatabasePath != "/tmp/override.db" {
		t.Errorf("env override failed: got %q", loaded.DatabasePath)
	}
	if loaded.Pipeline.MinLocalScore != 0.5 {
		t.Errorf("nested env override failed: got %f, want 0.5", loaded.Pipeline.MinLocalScore)
	}
	if !loaded.Embedding.ForceMock {
		t.Error("expected force_mock from env")
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AIDEBUG_DATABASE_PATH", "database_path"},
		{"AIDEBUG_PIPELINE__MAX_WORKERS", "pipeline.max_workers"},
		{"AIDEBUG_EMBEDDING__CACHE__TTL", "embedding.cache.ttl"},
	}
	for _, tt := range tests {
		if got := envKey(tt.in); got != tt.want {
			t.Errorf("envKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty embedding provider", func(c *Config) { c.Embedding.Provider = "" }},
		{"unknown embedding provider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"zero cache capacity", func(c *Config) { c.Embedding.Cache.Capacity = 0 }},
		{"mock llm", func(c *Config) { c.LLM.Enabled = true; c.LLM.Provider = ProviderMock }},
		{"llm without model", func(c *Config) { c.LLM.Enabled = true; c.LLM.Model = "" }},
		{"zero workers", func(c *Config) { c.Pipeline.MaxWorkers = 0 }},
		{"score above one", func(c *Config) { c.Pipeline.MinLocalScore = 1.5 }},
		{"negative threshold", func(c *Config) { c.Pipeline.ClassifierThreshold = -0.1 }},
		{"empty database", func(c *Config) { c.DatabasePath = "" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset(ProviderOpenAI)
	if p.EmbeddingModel != "text-embedding-3-small" || p.Dimensions != 1536 {
		t.Errorf("unexpected openai preset %+v", p)
	}

	p = GetPreset("unknown")
	if p.EmbeddingModel != "mock" {
		t.Errorf("expected fallback to mock preset, got %q", p.EmbeddingModel)
	}
}

func TestMockDimensions(t *testing.T) {
	if got := MockDimensions("sentence-transformers/all-MiniLM-L6-v2"); got != 384 {
		t.Errorf("expected 384 for SBERT model, got %d", got)
	}
	if got := MockDimensions("mock"); got != 768 {
		t.Errorf("expected 768, got %d", got)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderGoogle, "GOOGLE_API_KEY"},
		{ProviderOllama, ""},
		{ProviderMock, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestValidateScore(t *testing.T) {
	if err := validateScore("0.62"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateScore("abc"); err == nil {
		t.Error("expected error for non-number")
	}
	if err := validateScore("2"); err == nil {
		t.Error("expected error for out-of-range score")
	}
}
