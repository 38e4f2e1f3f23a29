package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/classifier"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/report"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search historical issues by free text",
	Long:  `Embeds the text and ranks stored issues by cosine similarity, optionally narrowed to a component or domain.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().Int("limit", 0, "maximum number of results (default from config)")
	queryCmd.Flags().String("component", "", "restrict to a component")
	queryCmd.Flags().String("domain", "", "restrict to a domain")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

type queryResultJSON struct {
	Query     string                 `json:"query"`
	Matches   []issues.Match         `json:"matches"`
	Prefilter classifier.Diagnostics `json:"prefilter"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queryText := args[0]

	limit, _ := cmd.Flags().GetInt("limit")
	component, _ := cmd.Flags().GetString("component")
	domain, _ := cmd.Flags().GetString("domain")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.pipeline()
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = a.cfg.Pipeline.Limit
	}

	matches, diag, err := orch.Search(ctx, queryText, component, domain, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		if matches == nil {
			matches = []issues.Match{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(queryResultJSON{Query: queryText, Matches: matches, Prefilter: diag})
	}

	if len(matches) == 0 {
		fmt.Println("No results found. Run `aidebug ingest` to load issues, or `aidebug reembed` after changing the embedding provider.")
		return nil
	}
	fmt.Print(report.SimilarList(queryText, matches, limit))
	if diag.Mode != classifier.ModeNone {
		fmt.Printf("\n(prefilter: %s %s%s, %d candidates)\n", diag.Mode, diag.Component, diag.Domain, diag.Candidates)
	}
	return nil
}
