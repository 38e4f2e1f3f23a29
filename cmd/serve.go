package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mellobo05/Ai-Assisted-Debug/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing issue search and analysis tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		orch, err := a.pipeline()
		if err != nil {
			return err
		}

		total, embedded, err := a.issues.Count(context.Background())
		if err != nil {
			return fmt.Errorf("counting issues: %w", err)
		}
		if embedded == 0 {
			fmt.Fprintf(os.Stderr, "Warning: no embedded issues in %s. Run `aidebug ingest` first.\n", a.cfg.DatabasePath)
		}

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "aidebug MCP server started on stdio (db=%s, issues=%d, embedded=%d)\n", a.cfg.DatabasePath, total, embedded)

		srv := mcpserver.NewServer(orch, a.issues, a.cfg.Pipeline.ExternalKnowledge)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
