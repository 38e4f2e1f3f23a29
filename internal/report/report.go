// Package report renders issue summaries, similar-issue lists and the
// sources header as plain text, and full analysis bundles as Markdown/HTML.
package report

import (
	"fmt"
	"strings"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/external"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
)

const (
	maxDescriptionChars   = 1200
	maxLatestCommentChars = 400
	maxListCommentChars   = 220
)

// Options controls IssueSummary.
type Options struct {
	// MaxItems caps the similar list; <= 0 means 5.
	MaxItems int
	// ThresholdPercent, when set, drops matches whose score*100 is below it.
	ThresholdPercent *float64
}

// Snip trims s, replaces newlines with spaces and caps it at n runes with a
// trailing "...".
func Snip(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	return truncate(s, n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func lines(ls []string) string {
	return strings.TrimRight(strings.Join(ls, "\n"), " \t\n") + "\n"
}

// IssueSummary renders the target issue block followed by its similar
// issues.
func IssueSummary(doc *issues.Document, matches []issues.Match, opts Options) string {
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = 5
	}

	var ls []string
	ls = append(ls, "Issue: "+doc.Key)
	if doc.URL != "" {
		ls = append(ls, "URL: "+doc.URL)
	}
	if doc.Summary != "" {
		ls = append(ls, "Summary: "+doc.Summary)
	}
	if doc.Status != "" || doc.Priority != "" {
		ls = append(ls, fmt.Sprintf("Status/Priority: %s / %s", doc.Status, doc.Priority))
	}
	if doc.Assignee != "" {
		ls = append(ls, "Assignee: "+doc.Assignee)
	}
	if len(doc.Components) > 0 {
		ls = append(ls, "Components: "+strings.Join(doc.Components, ", "))
	}
	if doc.ProgramTheme != "" {
		ls = append(ls, "Program/Theme: "+doc.ProgramTheme)
	}
	if len(doc.Labels) > 0 {
		ls = append(ls, "Labels: "+strings.Join(doc.Labels, ", "))
	}
	ls = append(ls, "")

	if desc := strings.TrimSpace(doc.Description); desc != "" {
		ls = append(ls, "Description:", truncate(desc, maxDescriptionChars), "")
	}
	if lc := doc.LatestComment(); lc != "" {
		ls = append(ls, "Latest comment: "+Snip(lc, maxLatestCommentChars), "")
	}

	if len(matches) > 0 {
		kept := matches
		if opts.ThresholdPercent != nil {
			kept = nil
			for _, m := range matches {
				if m.Score*100 >= *opts.ThresholdPercent {
					kept = append(kept, m)
				}
			}
		}
		if len(kept) > 0 {
			ls = append(ls, "Similar issues:")
			for i, m := range kept[:min(len(kept), maxItems)] {
				ls = append(ls, matchLine(i+1, m))
			}
			ls = append(ls, "")
		} else {
			best := matches[0].Score
			for _, m := range matches[1:] {
				best = max(best, m.Score)
			}
			ls = append(ls, fmt.Sprintf("No similar issues met similarity_threshold=%g (best=%.1f/100).",
				*opts.ThresholdPercent, best*100), "")
		}
	}
	return lines(ls)
}

func matchLine(n int, m issues.Match) string {
	return strings.TrimRight(fmt.Sprintf("%d. %s  sim=%.4f  [%s | %s]  %s", n, m.Key, m.Score, m.Status, m.Priority, m.Summary), " ")
}

// SimilarList renders a search result list with assignee and latest comment
// per match.
func SimilarList(query string, matches []issues.Match, maxItems int) string {
	if maxItems <= 0 {
		maxItems = 5
	}
	shown := matches[:min(len(matches), maxItems)]

	ls := []string{
		"Query: " + Snip(query, 300),
		fmt.Sprintf("Matches: %d / %d", len(shown), len(matches)),
		"",
	}
	for i, m := range shown {
		ls = append(ls, matchLine(i+1, m))
		if m.Assignee != "" {
			ls = append(ls, "   Assignee: "+m.Assignee)
		}
		if m.LatestComment != "" {
			ls = append(ls, "   Latest comment: "+Snip(m.LatestComment, maxListCommentChars))
		}
		ls = append(ls, "")
	}
	return lines(ls)
}

// SourcesHeader states where the evidence came from: the local top score
// against its threshold, and whether external search ran. ext is nil when
// external search did not run; skipReason then says why.
func SourcesHeader(topScore, minScore float64, ext *external.Response, skipReason string) string {
	ls := []string{fmt.Sprintf("Sources: internal issue DB embeddings (top_score=%.3f, threshold=%.2f)", topScore, minScore)}
	switch {
	case ext == nil:
		if skipReason == "" {
			skipReason = "not enabled or not needed"
		}
		ls = append(ls, fmt.Sprintf("Sources: external web search skipped (%s)", skipReason))
	case len(ext.Results) > 0:
		ls = append(ls, fmt.Sprintf("Sources: external web search used (hits=%d)", len(ext.Results)))
	case ext.Error != "":
		ls = append(ls, fmt.Sprintf("Sources: external web search attempted but failed (%s)", ext.Error))
	default:
		ls = append(ls, "Sources: external web search attempted but returned 0 results")
	}
	return strings.Join(ls, "\n") + "\n\n"
}

// EnsureSources prefixes text with header unless it already starts with a
// Sources line.
func EnsureSources(header, text string) string {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if trimmed == "" || strings.HasPrefix(trimmed, "Sources:") {
		return text
	}
	return header + trimmed
}
