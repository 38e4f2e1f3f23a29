package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/classifier"
)

// findSimilarIssuesTool defines the find_similar_issues MCP tool.
var findSimilarIssuesTool = mcp.NewTool("find_similar_issues",
	mcp.WithDescription("Find historical issues similar to free text or to a stored issue. Returns keys, similarity scores, status and latest comments."),
	mcp.WithString("query",
		mcp.Description("Free-text description of the problem"),
	),
	mcp.WithString("issue_key",
		mcp.Description("Key of a stored issue to find neighbours of (used when query is empty)"),
	),
	mcp.WithString("component",
		mcp.Description("Restrict the search to issues of this component when enough exist"),
	),
	mcp.WithString("domain",
		mcp.Description("Restrict the search to a problem domain when enough issues match"),
		mcp.Enum(domainNames()...),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of matches to return (default 5)"),
	),
)

// analyzeIssueTool defines the analyze_issue MCP tool.
var analyzeIssueTool = mcp.NewTool("analyze_issue",
	mcp.WithDescription("Run root-cause analysis for a stored issue using similar issues, optional log text and, when local evidence is weak, external search."),
	mcp.WithString("issue_key",
		mcp.Required(),
		mcp.Description("Issue key, e.g. PROJ-123"),
	),
	mcp.WithString("logs",
		mcp.Description("Raw log text captured around the failure"),
	),
	mcp.WithString("notes",
		mcp.Description("Free-form reporter notes"),
	),
	mcp.WithString("os",
		mcp.Description("Operating system or platform of the failing device"),
	),
	mcp.WithString("component",
		mcp.Description("Component hint for the similarity prefilter"),
	),
	mcp.WithBoolean("external",
		mcp.Description("Allow external web search when local matches are weak"),
	),
)

// getIssueTool defines the get_issue MCP tool.
var getIssueTool = mcp.NewTool("get_issue",
	mcp.WithDescription("Get a stored issue with its fields, latest comment and related issue keys."),
	mcp.WithString("issue_key",
		mcp.Required(),
		mcp.Description("Issue key, e.g. PROJ-123"),
	),
)

func domainNames() []string {
	names := make([]string, 0, len(classifier.Domains))
	for _, d := range classifier.Domains {
		names = append(names, string(d))
	}
	return names
}
