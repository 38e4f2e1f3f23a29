package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize aidebug configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose embedding and LLM providers and retrieval thresholds, and writes a .aidebug.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
