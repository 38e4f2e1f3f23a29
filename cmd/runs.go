package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/runs"
)

var runsCmd = &cobra.Command{
	Use:   "runs [issue-key]",
	Short: "List saved analysis runs for an issue",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs")
	runsCmd.Flags().Bool("json", false, "output runs as JSON")
	runsCmd.Flags().Bool("show", false, "print the report and analysis of the newest run")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	key, err := issues.NormalizeKey(args[0])
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")
	show, _ := cmd.Flags().GetBool("show")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	recs, err := a.runs.ListByIssue(context.Background(), key, limit)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []runs.Record{}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	if len(recs) == 0 {
		fmt.Printf("No saved runs for %s.\n", key)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tDOMAIN\tOS\tKEY")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), dash(r.Domain), dash(r.OS), shortKey(r.IdempotencyKey))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if show {
		fmt.Printf("\n%s\n\n--- Analysis ---\n%s\n", recs[0].Report, recs[0].Analysis)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortKey(k string) string {
	if len(k) > 12 {
		return k[:12]
	}
	return k
}
