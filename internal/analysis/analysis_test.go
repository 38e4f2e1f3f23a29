package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/external"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/llm"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/logsignals"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/report"
)

type fakeProvider struct {
	content string
	err     error
	block   bool
	got     llm.CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.got = req
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func samplePayload() Payload {
	doc := &issues.Document{
		Key:         "PROJ-7",
		Summary:     "Video playback stutters",
		Description: "HEVC decode error after update",
		Components:  []string{"Media"},
		Comments:    []issues.Comment{{Body: "Also a timeout in the renderer"}},
	}
	return Payload{
		SourcesHeader: report.SourcesHeader(0.42, 0.62, &external.Response{Results: []external.Result{{Title: "HEVC fix"}}}, ""),
		Issue:         doc,
		Matches: []issues.Match{
			{Key: "PROJ-1", Score: 0.4213, Summary: "Decoder hang"},
		},
		LogSignals:    &logsignals.Result{Signatures: []string{"DecoderError: unsupported profile"}},
		External:      &external.Response{Results: []external.Result{{Title: "HEVC fix"}, {Title: " "}}},
		TopScore:      0.42,
		MinLocalScore: 0.62,
	}
}

func TestOfflineLayout(t *testing.T) {
	out := Offline(samplePayload(), "LLM is disabled")
	if !strings.HasPrefix(out, "Sources: internal issue DB embeddings (top_score=0.420, threshold=0.62)\nSources: external web search used (hits=1)\n\nAnalysis: skipped LLM (LLM is disabled)\n") {
		t.Errorf("unexpected header:\n%s", out)
	}
	for _, want := range []string{
		"Target: PROJ-7 - Video playback stutters\n",
		"Components: Media\n",
		"Latest comment (snippet): Also a timeout in the renderer\n",
		"Log signals (top): DecoderError: unsupported profile\n",
		"Probable root cause (offline hints):\n1. Media codec/decoder pipeline failure",
		"Top matches:\n1. PROJ-1  score=42.1  Decoder hang\n",
		"Next debugging steps (generic):\n- Reproduce",
		"External references (titles):\n- HEVC fix",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "- \n") {
		t.Error("blank external title should be skipped")
	}
}

func TestOfflineBuildsHeaderWhenMissing(t *testing.T) {
	out := Offline(Payload{TopScore: 0.9, MinLocalScore: 0.62}, "x")
	if !strings.HasPrefix(out, "Sources: internal issue DB embeddings (top_score=0.900") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "Target:") || strings.Contains(out, "Top matches:") {
		t.Errorf("no issue or matches expected:\n%s", out)
	}
}

func TestHypotheses(t *testing.T) {
	got := Hypotheses(samplePayload())
	if len(got) != 2 {
		t.Fatalf("expected codec + timeout hints, got %v", got)
	}
	if !strings.HasPrefix(got[0], "Media codec") || !strings.HasPrefix(got[1], "Timeout/hang") {
		t.Errorf("unexpected order %v", got)
	}

	many := Payload{Notes: "codec flag disabled timeout crash proxy"}
	if got := Hypotheses(many); len(got) != maxHypotheses {
		t.Errorf("expected %d hints, got %d", maxHypotheses, len(got))
	}

	if got := Hypotheses(Payload{Issue: &issues.Document{Summary: "Button color"}}); len(got) != 1 || got[0] != noEvidenceHint {
		t.Errorf("expected no-evidence hint, got %v", got)
	}
}

func TestLLMRendererSuccess(t *testing.T) {
	p := &fakeProvider{content: "  Root cause: firmware regression  "}
	r := NewLLMRenderer(p, config.LLMConfig{Model: "m", MaxTokens: 100, Temperature: 0.2}, zap.NewNop())

	out := r.Run(context.Background(), Prompts, samplePayload())
	if out.Fallback {
		t.Fatalf("unexpected fallback: %s", out.Reason)
	}
	if out.Text != "Root cause: firmware regression\n" {
		t.Errorf("text = %q", out.Text)
	}
	if p.got.Model != "m" || p.got.MaxTokens != 100 || len(p.got.Messages) != 2 {
		t.Errorf("unexpected request %+v", p.got)
	}
	user := p.got.Messages[1].Content
	if !strings.Contains(user, "INSTRUCTIONS:\nStart your output with the provided Sources lines") {
		t.Error("instructions missing from prompt")
	}
	if !strings.Contains(user, `"key": "PROJ-7"`) || !strings.Contains(user, `"min_local_score": 0.62`) {
		t.Errorf("payload missing from prompt:\n%s", user)
	}
}

func TestLLMRendererFallbackOnError(t *testing.T) {
	p := &fakeProvider{err: errors.New("quota exceeded")}
	out := NewLLMRenderer(p, config.LLMConfig{}, nil).Run(context.Background(), Prompts, samplePayload())
	if !out.Fallback || !strings.Contains(out.Reason, "quota exceeded") {
		t.Errorf("expected fallback with reason, got %+v", out)
	}
	if !strings.Contains(out.Text, "Analysis: skipped LLM (LLM call failed (quota exceeded).)") {
		t.Errorf("unexpected text:\n%s", out.Text)
	}
}

func TestLLMRendererFallbackOnEmpty(t *testing.T) {
	out := NewLLMRenderer(&fakeProvider{content: "   "}, config.LLMConfig{}, nil).Run(context.Background(), nil, samplePayload())
	if !out.Fallback {
		t.Error("expected fallback on empty response")
	}
}

func TestLLMRendererTimeout(t *testing.T) {
	p := &fakeProvider{block: true}
	r := NewLLMRenderer(p, config.LLMConfig{Timeout: 30 * time.Millisecond}, nil)

	start := time.Now()
	out := r.Run(context.Background(), Prompts, samplePayload())
	if time.Since(start) > 2*time.Second {
		t.Error("timeout not applied")
	}
	if !out.Fallback || !strings.Contains(out.Reason, "deadline exceeded") {
		t.Errorf("expected deadline fallback, got %+v", out)
	}
}

func TestNewRenderer(t *testing.T) {
	r := NewRenderer(config.LLMConfig{Enabled: false}, nil)
	off, ok := r.(OfflineRenderer)
	if !ok || !strings.Contains(off.Reason, "disabled") {
		t.Errorf("expected disabled offline renderer, got %#v", r)
	}

	t.Setenv("GOOGLE_API_KEY", "")
	r = NewRenderer(config.LLMConfig{Enabled: true, Provider: config.ProviderGoogle}, nil)
	off, ok = r.(OfflineRenderer)
	if !ok || !strings.Contains(off.Reason, "GOOGLE_API_KEY") {
		t.Errorf("expected unconfigured offline renderer, got %#v", r)
	}

	t.Setenv("GOOGLE_API_KEY", "k")
	if _, ok := NewRenderer(config.LLMConfig{Enabled: true, Provider: config.ProviderGoogle}, nil).(*LLMRenderer); !ok {
		t.Error("expected LLM renderer")
	}

	out := OfflineRenderer{Reason: "offline"}.Run(context.Background(), nil, samplePayload())
	if !out.Fallback || out.Reason != "offline" {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestBuildPromptNoInstructions(t *testing.T) {
	prompt, err := BuildPrompt([]string{" ", ""}, Payload{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(prompt, "INSTRUCTIONS:\n(none)\n\nINPUT_DATA (JSON):\n{") {
		t.Errorf("unexpected prompt %q", prompt)
	}
}
