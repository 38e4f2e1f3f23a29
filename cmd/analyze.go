package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/orchestrator"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [issue-key]",
	Short: "Rank similar issues and draft a root-cause analysis",
	Long: `Fetches the issue from the local database, extracts error signatures from
the given logs, ranks similar historical issues and drafts a root-cause
analysis. When the best local match is below --min-score and external search
is enabled, the web is searched as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("logs", "", "path to a log file to mine for error signatures")
	f.String("summary", "", "reporter summary, when it differs from the stored one")
	f.String("notes", "", "free-form notes added to the query")
	f.String("os", "", "operating system the issue was seen on")
	f.String("component", "", "restrict matches to a component")
	f.String("domain", "", "restrict matches to a domain (display, audio, ...)")
	f.Int("limit", 0, "number of similar issues (default from config)")
	f.Float64("min-score", 0, "top score below which external search fires (default from config)")
	f.Bool("external", false, "allow external search (default from config)")
	f.Bool("save-run", true, "persist the run for later reuse")
	f.Bool("json", false, "print the full result as JSON")
	f.String("format", "text", "output format: text, markdown, html")
	f.String("out", "", "write the output to a file instead of stdout")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.pipeline()
	if err != nil {
		return err
	}

	f := cmd.Flags()
	req := orchestrator.Request{IssueKey: args[0]}
	req.LogPath, _ = f.GetString("logs")
	req.Summary, _ = f.GetString("summary")
	req.Notes, _ = f.GetString("notes")
	req.OS, _ = f.GetString("os")
	req.Component, _ = f.GetString("component")
	req.Domain, _ = f.GetString("domain")
	req.Limit, _ = f.GetInt("limit")
	req.MinLocalScore, _ = f.GetFloat64("min-score")
	req.SaveRun, _ = f.GetBool("save-run")
	req.External = a.cfg.Pipeline.ExternalKnowledge
	if f.Changed("external") {
		req.External, _ = f.GetBool("external")
	}
	if verbose {
		req.Observer = func(e orchestrator.Event) {
			fmt.Fprintf(os.Stderr, "-> %s (%s) %s\n", e.State, e.Elapsed.Round(time.Millisecond), e.Detail)
		}
	}

	res, err := orch.Run(context.Background(), req)
	if err != nil {
		return err
	}

	format, _ := f.GetString("format")
	if asJSON, _ := f.GetBool("json"); asJSON {
		format = "json"
	}

	var w io.Writer = os.Stdout
	if out, _ := f.GetString("out"); out != "" {
		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		defer file.Close()
		w = file
	}

	if err := writeResult(w, res, format); err != nil {
		return err
	}
	for _, d := range res.Meta.Degraded {
		fmt.Fprintf(os.Stderr, "Warning: %s: %s\n", d.Stage, d.Reason)
	}
	return nil
}

// writeResult renders res in one of the supported output formats.
func writeResult(w io.Writer, res *orchestrator.Result, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		fmt.Fprintln(w, res.Report)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "--- Analysis ---")
		fmt.Fprintln(w, res.Analysis)
		if res.Meta.Reused != "" {
			fmt.Fprintf(w, "\n(reused earlier analysis from %s)\n", res.Meta.Reused)
		}
		return nil
	case "markdown", "md":
		_, err := io.WriteString(w, report.Markdown(res.Bundle()))
		return err
	case "html":
		page, err := report.HTML(res.Bundle())
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, page)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return fmt.Errorf("unknown format %q: must be text, markdown, html or json", format)
	}
}
