package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/orchestrator"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/report"
)

// handleFindSimilarIssues ranks stored issues against free text or a stored
// issue.
func (s *Server) handleFindSimilarIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(request.GetString("query", ""))
	key := strings.TrimSpace(request.GetString("issue_key", ""))
	if query == "" && key == "" {
		return mcp.NewToolResultError("one of query or issue_key is required"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	var exclude []string
	label := query
	if query == "" {
		doc, err := s.issues.Fetch(ctx, key)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fetching issue: %v", err)), nil
		}
		query = doc.EmbeddingText()
		exclude = append(exclude, doc.Key)
		label = doc.Key + " " + doc.Summary
	}

	matches, _, err := s.analyzer.Search(ctx, query, request.GetString("component", ""), request.GetString("domain", ""), limit, exclude...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("No similar issues found. The issue database may not be embedded yet. Run `aidebug ingest` or `aidebug reembed`."), nil
	}

	return mcp.NewToolResultText(report.SimilarList(label, matches, limit)), nil
}

// handleAnalyzeIssue runs the full pipeline and returns the report followed
// by the analysis.
func (s *Server) handleAnalyzeIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("issue_key")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_key"), nil
	}

	res, err := s.analyzer.Run(ctx, orchestrator.Request{
		IssueKey:  key,
		LogText:   request.GetString("logs", ""),
		Notes:     request.GetString("notes", ""),
		OS:        request.GetString("os", ""),
		Component: request.GetString("component", ""),
		External:  request.GetBool("external", s.external),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatAnalysis(res)), nil
}

// handleGetIssue returns a stored issue as text.
func (s *Server) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("issue_key")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_key"), nil
	}

	doc, err := s.issues.Fetch(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetching issue: %v", err)), nil
	}

	return mcp.NewToolResultText(formatIssue(doc)), nil
}

func formatAnalysis(res *orchestrator.Result) string {
	var sb strings.Builder
	sb.WriteString(res.Analysis)
	sb.WriteString("\n--- Report ---\n")
	sb.WriteString(res.Report)
	if len(res.Meta.Degraded) > 0 {
		sb.WriteString("\n--- Skipped steps ---\n")
		for _, d := range res.Meta.Degraded {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", d.Stage, d.Reason))
		}
	}
	return sb.String()
}

func formatIssue(doc *issues.Document) string {
	var sb strings.Builder
	sb.WriteString(report.IssueSummary(doc, nil, report.Options{}))
	if len(doc.RelatedKeys) > 0 {
		sb.WriteString(fmt.Sprintf("Related: %s\n", strings.Join(doc.RelatedKeys, ", ")))
	}
	return sb.String()
}
