package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/classifier"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/orchestrator"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Analyzer is the pipeline surface the tools call.
type Analyzer interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	Search(ctx context.Context, query, component, domain string, limit int, exclude ...string) ([]issues.Match, classifier.Diagnostics, error)
}

// IssueReader looks up stored issues.
type IssueReader interface {
	Fetch(ctx context.Context, key string) (*issues.Document, error)
}

// Server wraps an MCP server that exposes issue retrieval tools.
type Server struct {
	analyzer Analyzer
	issues   IssueReader
	external bool
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server. external is the default for the
// analyze_issue external search toggle.
func NewServer(analyzer Analyzer, issueReader IssueReader, external bool) *Server {
	s := &Server{
		analyzer: analyzer,
		issues:   issueReader,
		external: external,
	}

	s.mcp = server.NewMCPServer(
		"aidebug",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(findSimilarIssuesTool, s.handleFindSimilarIssues)
	s.mcp.AddTool(analyzeIssueTool, s.handleAnalyzeIssue)
	s.mcp.AddTool(getIssueTool, s.handleGetIssue)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
