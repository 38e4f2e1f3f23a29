// Package analysis writes the root-cause analysis for an issue, either with
// an LLM or, when that is unavailable, with an offline heuristic summary.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/external"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/llm"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/logsignals"
)

// Payload is the evidence handed to the renderer.
type Payload struct {
	SourcesHeader string             `json:"sources_header"`
	Issue         *issues.Document   `json:"issue"`
	Matches       []issues.Match     `json:"similar"`
	LogSignals    *logsignals.Result `json:"log_signals,omitempty"`
	LogsTail      string             `json:"logs_tail,omitempty"`
	External      *external.Response `json:"external_refs,omitempty"`
	TopScore      float64            `json:"local_top_similarity"`
	MinLocalScore float64            `json:"min_local_score"`
	Notes         string             `json:"notes,omitempty"`
}

// Output is the rendered analysis. Fallback is set when the offline summary
// was used, with Reason saying why.
type Output struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

// Renderer produces an analysis. It never fails; problems are folded into an
// offline Output.
type Renderer interface {
	Run(ctx context.Context, prompts []string, payload Payload) Output
}

// Prompts are the instructions sent with every analysis request.
var Prompts = []string{
	"Start your output with the provided Sources lines (do not omit them).",
	"You are an expert debugging assistant. Produce a root-cause oriented summary for the target issue.",
	"Use the target issue fields, log signals, and the similar issues list as evidence. Do not invent details.",
	"If logs/signatures are provided, treat them as the primary evidence for what failed and why.",
	"If external references are provided, use them only as supporting context and clearly label them as external (not confirmed).",
	"Output (concise):",
	"Probable root cause (ranked hypotheses + confidence 0-100)",
	"Evidence (quotes/snippets from issue/comments)",
	"Log evidence (specific error lines / exception names / error codes)",
	"External references (titles only)",
	"Next debugging steps (5-8)",
	"Suggested fix/mitigation",
}

// OfflineRenderer always produces the heuristic summary.
type OfflineRenderer struct {
	Reason string
}

func (r OfflineRenderer) Run(_ context.Context, _ []string, payload Payload) Output {
	return Output{Text: Offline(payload, r.Reason), Fallback: true, Reason: r.Reason}
}

// LLMRenderer asks an LLM provider for the analysis under a timeout and
// falls back to the offline summary on any failure.
type LLMRenderer struct {
	provider    llm.Provider
	model       string
	timeout     time.Duration
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewLLMRenderer wraps a provider. A zero timeout means 15 seconds.
func NewLLMRenderer(p llm.Provider, cfg config.LLMConfig, logger *zap.Logger) *LLMRenderer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMRenderer{
		provider:    p,
		model:       cfg.Model,
		timeout:     timeout,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

func (r *LLMRenderer) Run(ctx context.Context, prompts []string, payload Payload) Output {
	prompt, err := BuildPrompt(prompts, payload)
	if err != nil {
		return r.fallback(payload, fmt.Sprintf("LLM prompt could not be built (%v).", err))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are an expert debugging assistant. Follow the instructions carefully."},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	})
	if err != nil {
		r.logger.Warn("llm analysis failed",
			zap.String("provider", r.provider.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return r.fallback(payload, fmt.Sprintf("LLM call failed (%v).", err))
	}

	text := resp.Text()
	if text == "" {
		return r.fallback(payload, "LLM returned an empty response.")
	}
	r.logger.Debug("llm analysis complete",
		zap.String("provider", r.provider.Name()),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))
	return Output{Text: text + "\n"}
}

func (r *LLMRenderer) fallback(payload Payload, reason string) Output {
	return Output{Text: Offline(payload, reason), Fallback: true, Reason: reason}
}

// BuildPrompt joins the instructions and serializes the payload.
func BuildPrompt(prompts []string, payload Payload) (string, error) {
	var instr []string
	for _, p := range prompts {
		if p = strings.TrimSpace(p); p != "" {
			instr = append(instr, p)
		}
	}
	instructions := strings.Join(instr, "\n\n")
	if instructions == "" {
		instructions = "(none)"
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling payload: %w", err)
	}
	return fmt.Sprintf("INSTRUCTIONS:\n%s\n\nINPUT_DATA (JSON):\n%s\n", instructions, data), nil
}

// NewRenderer picks the renderer for the configuration. A disabled or
// unconfigured LLM yields an OfflineRenderer carrying the reason.
func NewRenderer(cfg config.LLMConfig, logger *zap.Logger) Renderer {
	if !cfg.Enabled {
		return OfflineRenderer{Reason: "LLM is disabled (llm.enabled=false)."}
	}
	p, err := llm.NewProvider(cfg)
	if err != nil {
		return OfflineRenderer{Reason: fmt.Sprintf("LLM is not configured (%v).", err)}
	}
	return NewLLMRenderer(p, cfg, logger)
}
