package analysis

import (
	"fmt"
	"strings"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/report"
)

type hypothesis struct {
	keywords []string
	text     string
}

// hypotheses are checked in order; at most maxHypotheses are reported.
var hypotheses = []hypothesis{
	{
		keywords: []string{"decodererror", "decode error", "decoding error", "cros-codecs", "codec", "hevc", "h.265", "transcoding", "vaapi", "v4l2"},
		text:     "Media codec/decoder pipeline failure (e.g. DecoderError): likely a codec support, driver or firmware regression; check decoder logs, codec capabilities and recent media stack changes.",
	},
	{
		keywords: []string{"needs enablement", "enablement", "feature flag", "flag", "server-side", "upstream"},
		text:     "Feature/enablement is disabled or gated upstream (check flags, policies, remote config).",
	},
	{
		keywords: []string{"not enabled", "disabled", "not working", "fails to", "unable to"},
		text:     "Capability negotiation/config mismatch (check runtime config, negotiated codecs/features, permissions).",
	},
	{
		keywords: []string{"timeout", "hang", "stuck", "deadlock"},
		text:     "Timeout/hang likely due to a blocking call or network/proxy issue (check logs, timeouts, DNS).",
	},
	{
		keywords: []string{"crash", "segfault", "null pointer", "assert", "exception", "stack trace"},
		text:     "Runtime crash/exception (look for stack traces and recent code changes/regressions).",
	},
	{
		keywords: []string{"ssl", "certificate", "handshake", "proxy", "forbidden", "unauthorized", "auth"},
		text:     "Connectivity/auth/proxy/cert issue (verify network route, cert chain and credentials).",
	},
}

const (
	maxHypotheses    = 3
	maxOfflineMatch  = 10
	maxSignalsInHint = 30

	noEvidenceHint = "Insufficient evidence offline: collect logs, repro steps and exact error messages."
)

var nextSteps = []string{
	"- Reproduce with timestamps and collect relevant logs for the failing window.",
	"- Confirm environment details (OS/build/version, device, codec/feature flags, network/proxy).",
	"- Search logs for explicit errors/warnings; attach the exact first failure.",
	"- Compare against the closest historical match; diff configuration and recent changes.",
}

// Hypotheses returns keyword-derived root-cause hints for the evidence text.
func Hypotheses(p Payload) []string {
	var parts []string
	if p.Issue != nil {
		parts = append(parts, p.Issue.Summary, p.Issue.Description, p.Issue.LatestComment())
	}
	parts = append(parts, p.Notes)
	if p.LogSignals != nil {
		sigs := p.LogSignals.Signatures
		parts = append(parts, sigs[:min(len(sigs), maxSignalsInHint)]...)
	}
	text := strings.ToLower(strings.Join(parts, " "))

	var out []string
	for _, h := range hypotheses {
		for _, k := range h.keywords {
			if strings.Contains(text, k) {
				out = append(out, h.text)
				break
			}
		}
		if len(out) == maxHypotheses {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, noEvidenceHint)
	}
	return out
}

// Offline renders the heuristic analysis used when no LLM answer is
// available. It starts with the sources header.
func Offline(p Payload, reason string) string {
	header := p.SourcesHeader
	if header == "" {
		header = report.SourcesHeader(p.TopScore, p.MinLocalScore, p.External, "")
	}

	ls := []string{strings.TrimRight(header, "\n"), "", fmt.Sprintf("Analysis: skipped LLM (%s)", reason)}

	if doc := p.Issue; doc != nil {
		target := "Target: " + doc.Key
		if s := strings.TrimSpace(doc.Summary); s != "" {
			target += " - " + s
		}
		ls = append(ls, target)
		if len(doc.Components) > 0 {
			ls = append(ls, "Components: "+strings.Join(doc.Components, ", "))
		}
		if lc := doc.LatestComment(); lc != "" {
			ls = append(ls, "Latest comment (snippet): "+report.Snip(lc, 220))
		}
		if p.LogSignals != nil && len(p.LogSignals.Signatures) > 0 {
			sigs := p.LogSignals.Signatures
			ls = append(ls, "Log signals (top): "+report.Snip(strings.Join(sigs[:min(len(sigs), 6)], " | "), 240))
		}
		ls = append(ls, "", "Probable root cause (offline hints):")
		for i, h := range Hypotheses(p) {
			ls = append(ls, fmt.Sprintf("%d. %s", i+1, h))
		}
	}

	if len(p.Matches) > 0 {
		ls = append(ls, "", "Top matches:")
		for i, m := range p.Matches[:min(len(p.Matches), maxOfflineMatch)] {
			ls = append(ls, strings.TrimRight(fmt.Sprintf("%d. %s  score=%.1f  %s", i+1, m.Key, m.Score*100, strings.TrimSpace(m.Summary)), " "))
		}
		ls = append(ls, "", "Next debugging steps (generic):")
		ls = append(ls, nextSteps...)
	}

	if p.External != nil && len(p.External.Results) > 0 {
		ls = append(ls, "", "External references (titles):")
		for _, r := range p.External.Results[:min(len(p.External.Results), 10)] {
			if t := strings.TrimSpace(r.Title); t != "" {
				ls = append(ls, "- "+t)
			}
		}
	}

	return strings.TrimRight(strings.Join(ls, "\n"), " \t\n") + "\n"
}
