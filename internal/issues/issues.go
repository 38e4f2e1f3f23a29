// Package issues models stored issue records and persists them, with their
// embeddings, in SQLite.
package issues

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

// Comment is one issue comment. Documents keep comments most recent first.
type Comment struct {
	Author  string `json:"author,omitempty"`
	Body    string `json:"body"`
	Created string `json:"created,omitempty"`
}

// Document is a historical issue record.
type Document struct {
	Key          string    `json:"key"`
	URL          string    `json:"url,omitempty"`
	Summary      string    `json:"summary"`
	Description  string    `json:"description,omitempty"`
	Status       string    `json:"status,omitempty"`
	Priority     string    `json:"priority,omitempty"`
	Assignee     string    `json:"assignee,omitempty"`
	IssueType    string    `json:"issue_type,omitempty"`
	ProgramTheme string    `json:"program_theme,omitempty"`
	Labels       []string  `json:"labels,omitempty"`
	Components   []string  `json:"components,omitempty"`
	Comments     []Comment `json:"comments,omitempty"`
	RelatedKeys  []string  `json:"related_keys,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Match is a similarity hit enriched with the matched issue's metadata.
type Match struct {
	Key           string   `json:"key"`
	Score         float64  `json:"score"`
	URL           string   `json:"url,omitempty"`
	Summary       string   `json:"summary"`
	Status        string   `json:"status,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	Assignee      string   `json:"assignee,omitempty"`
	Components    []string `json:"components,omitempty"`
	LatestComment string   `json:"latest_comment,omitempty"`
}

var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)

// NormalizeKey trims and uppercases an issue key and checks its shape
// (PROJECT-123).
func NormalizeKey(key string) (string, error) {
	k := strings.ToUpper(strings.TrimSpace(key))
	if k == "" {
		return "", rcaerr.New(rcaerr.KindInvalidInput, "issue key", fmt.Errorf("issue key is required"))
	}
	if !keyPattern.MatchString(k) {
		return "", rcaerr.New(rcaerr.KindInvalidInput, "issue key", fmt.Errorf("malformed issue key %q", key))
	}
	return k, nil
}

// LatestComment returns the body of the most recent comment, or "".
func (d *Document) LatestComment() string {
	for _, c := range d.Comments {
		if b := strings.TrimSpace(c.Body); b != "" {
			return b
		}
	}
	return ""
}

// EmbeddingText lays out the document as the text that gets embedded.
func (d *Document) EmbeddingText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issue: %s\n", d.Key)
	fmt.Fprintf(&b, "Type: %s\n", d.IssueType)
	fmt.Fprintf(&b, "Status: %s\n", d.Status)
	fmt.Fprintf(&b, "Priority: %s\n", d.Priority)
	fmt.Fprintf(&b, "Assignee: %s\n", d.Assignee)
	fmt.Fprintf(&b, "Program/Theme: %s\n", d.ProgramTheme)
	fmt.Fprintf(&b, "Components: %s\n", strings.Join(d.Components, ", "))
	fmt.Fprintf(&b, "Labels: %s\n", strings.Join(d.Labels, ", "))
	fmt.Fprintf(&b, "Summary: %s\n\n", d.Summary)
	fmt.Fprintf(&b, "Description:\n%s\n", d.Description)

	var bodies []string
	for _, c := range d.Comments {
		if c.Body != "" {
			bodies = append(bodies, c.Body)
		}
	}
	if len(bodies) > 0 {
		b.WriteString("\n\nComments:\n")
		b.WriteString(strings.Join(bodies, "\n---\n"))
	}
	return b.String()
}

// ToMatch builds a Match from the document and a score.
func (d *Document) ToMatch(score float64) Match {
	return Match{
		Key:           d.Key,
		Score:         score,
		URL:           d.URL,
		Summary:       d.Summary,
		Status:        d.Status,
		Priority:      d.Priority,
		Assignee:      d.Assignee,
		Components:    d.Components,
		LatestComment: d.LatestComment(),
	}
}
