package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/external"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
)

// Bundle is everything a rendered analysis page shows.
type Bundle struct {
	IssueKey   string
	Summary    string
	Report     string
	Analysis   string
	Signatures []string
	Matches    []issues.Match
	External   []external.Result
	Degraded   []string
}

// Markdown renders the bundle as a Markdown document.
func Markdown(b Bundle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s", b.IssueKey)
	if b.Summary != "" {
		fmt.Fprintf(&sb, ": %s", b.Summary)
	}
	sb.WriteString("\n\n")

	if a := strings.TrimSpace(b.Analysis); a != "" {
		sb.WriteString("## Analysis\n\n```text\n")
		sb.WriteString(a)
		sb.WriteString("\n```\n\n")
	}

	if len(b.Matches) > 0 {
		sb.WriteString("## Similar issues\n\n| # | Key | Score | Status | Summary |\n|---|---|---|---|---|\n")
		for i, m := range b.Matches {
			key := m.Key
			if m.URL != "" {
				key = fmt.Sprintf("[%s](%s)", m.Key, m.URL)
			}
			fmt.Fprintf(&sb, "| %d | %s | %.4f | %s | %s |\n", i+1, key, m.Score, tableCell(m.Status), tableCell(m.Summary))
		}
		sb.WriteString("\n")
	}

	if len(b.Signatures) > 0 {
		sb.WriteString("## Log signatures\n\n```text\n")
		sb.WriteString(strings.Join(b.Signatures, "\n"))
		sb.WriteString("\n```\n\n")
	}

	if len(b.External) > 0 {
		sb.WriteString("## External references\n\n")
		for _, r := range b.External {
			if r.URL != "" {
				fmt.Fprintf(&sb, "- [%s](%s)\n", r.Title, r.URL)
			} else {
				fmt.Fprintf(&sb, "- %s\n", r.Title)
			}
		}
		sb.WriteString("\n")
	}

	if len(b.Degraded) > 0 {
		sb.WriteString("## Skipped steps\n\n")
		for _, d := range b.Degraded {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
		sb.WriteString("\n")
	}

	if r := strings.TrimSpace(b.Report); r != "" {
		sb.WriteString("## Issue report\n\n```text\n")
		sb.WriteString(r)
		sb.WriteString("\n```\n")
	}
	return sb.String()
}

func tableCell(s string) string {
	return strings.ReplaceAll(Snip(s, 120), "|", `\|`)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; } td, th { border: 1px solid #ddd; padding: 4px 8px; }
pre { padding: 1rem; overflow-x: auto; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// HTML renders the bundle as a standalone HTML page. Raw HTML in the input
// is escaped.
func HTML(b Bundle) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(b)), &body); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}

	var out bytes.Buffer
	err := pageTemplate.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{
		Title: "Analysis " + b.IssueKey,
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("rendering page: %w", err)
	}
	return out.String(), nil
}
