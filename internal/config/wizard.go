package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to aidebug! Let's configure issue retrieval.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Embedding provider.
	embedPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{"mock", "openai", "google", "ollama"},
	}
	_, embedStr, err := embedPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding provider selection: %w", err)
	}
	embedProvider := ProviderType(embedStr)
	preset := GetPreset(embedProvider)
	cfg.Embedding.Provider = embedProvider
	cfg.Embedding.Model = preset.EmbeddingModel
	cfg.Embedding.Dimensions = preset.Dimensions

	// 2. LLM analysis.
	llmPrompt := promptui.Select{
		Label: "Select LLM for root-cause analysis",
		Items: []string{"none (offline summary)", "google", "openai", "ollama"},
	}
	llmIdx, _, err := llmPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("llm selection: %w", err)
	}
	if llmIdx > 0 {
		llmProvider := []ProviderType{"", ProviderGoogle, ProviderOpenAI, ProviderOllama}[llmIdx]
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = llmProvider
		cfg.LLM.Model = GetPreset(llmProvider).ChatModel
	}

	// 3. Retrieval threshold.
	scorePrompt := promptui.Prompt{
		Label:    "Minimum local similarity before external search",
		Default:  strconv.FormatFloat(cfg.Pipeline.MinLocalScore, 'f', 2, 64),
		Validate: validateScore,
	}
	scoreStr, err := scorePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("min local score: %w", err)
	}
	cfg.Pipeline.MinLocalScore, _ = strconv.ParseFloat(scoreStr, 64)

	// 4. External knowledge.
	extPrompt := promptui.Select{
		Label: "Search the web when local matches are weak?",
		Items: []string{"no", "yes"},
	}
	extIdx, _, err := extPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("external knowledge selection: %w", err)
	}
	cfg.Pipeline.ExternalKnowledge = extIdx == 1

	// 5. Database path.
	dbPrompt := promptui.Prompt{
		Label:   "Issue database path",
		Default: cfg.DatabasePath,
	}
	dbPath, err := dbPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}
	cfg.DatabasePath = dbPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, p := range []ProviderType{cfg.Embedding.Provider, cfg.LLM.Provider} {
		if !cfg.LLM.Enabled && p == cfg.LLM.Provider {
			continue
		}
		if envVar := APIKeyEnvVar(p); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running aidebug analyze.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateScore(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v < -1 || v > 1 {
		return fmt.Errorf("must be within [-1, 1]")
	}
	return nil
}
