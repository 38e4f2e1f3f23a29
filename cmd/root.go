package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aidebug",
	Short: "Find similar past issues and draft a root-cause analysis",
	Long: `aidebug ranks historical issues by semantic similarity to a new bug
report and its logs, searches the web when local evidence is weak, and
drafts a root-cause analysis from what it found. It is available as a CLI,
an HTTP server and an MCP server for AI agents.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
