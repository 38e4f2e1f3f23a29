package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/classifier"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/orchestrator"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

var intakeCmd = &cobra.Command{
	Use:   "intake [issue-key]",
	Short: "Store a new issue, embed it and analyze it",
	Long: `Stores a newly reported issue (merging with any stored copy), embeds it so
later searches can find it, then runs the same analysis as "aidebug analyze".
Missing key and summary are prompted for.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIntake,
}

func init() {
	f := intakeCmd.Flags()
	f.String("summary", "", "short summary of the issue")
	f.String("description", "", "longer description")
	f.String("domain", "", "domain (display, audio, ...), stored as a label")
	f.String("os", "", "operating system the issue was seen on")
	f.String("component", "", "component the issue belongs to")
	f.String("logs", "", "path to a log file")
	f.String("notes", "", "free-form notes added to the query")
	f.Bool("external", false, "allow external search (default from config)")
	f.Bool("save-run", true, "persist the run for later reuse")
	rootCmd.AddCommand(intakeCmd)
}

// intakeInput is what the reporter supplied for a new issue.
type intakeInput struct {
	Key         string
	Summary     string
	Description string
	Domain      string
	OS          string
	Component   string
}

// mergeIntake folds reporter input into the stored issue, if any. Supplied
// text replaces stored text; components and labels accumulate.
func mergeIntake(existing *issues.Document, in intakeInput) issues.Document {
	var doc issues.Document
	if existing != nil {
		doc = *existing
		doc.Labels = append([]string(nil), existing.Labels...)
		doc.Components = append([]string(nil), existing.Components...)
	}
	doc.Key = in.Key
	if in.Summary != "" {
		doc.Summary = in.Summary
	}
	if in.Description != "" {
		doc.Description = in.Description
	}
	if doc.Status == "" {
		doc.Status = "Open"
	}
	if c := strings.TrimSpace(in.Component); c != "" {
		doc.Components = addUnique(doc.Components, c)
	}
	if d := strings.ToLower(strings.TrimSpace(in.Domain)); d != "" {
		doc.Labels = addUnique(doc.Labels, d)
	}
	if o := strings.ToLower(strings.TrimSpace(in.OS)); o != "" {
		doc.Labels = addUnique(doc.Labels, "os:"+o)
	}
	return doc
}

func addUnique(xs []string, x string) []string {
	for _, v := range xs {
		if strings.EqualFold(v, x) {
			return xs
		}
	}
	return append(xs, x)
}

func runIntake(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	var in intakeInput
	if len(args) == 1 {
		in.Key = args[0]
	}
	in.Summary, _ = f.GetString("summary")
	in.Description, _ = f.GetString("description")
	in.Domain, _ = f.GetString("domain")
	in.OS, _ = f.GetString("os")
	in.Component, _ = f.GetString("component")

	if in.Key == "" {
		keyPrompt := promptui.Prompt{
			Label: "Issue key",
			Validate: func(s string) error {
				_, err := issues.NormalizeKey(s)
				return err
			},
		}
		k, err := keyPrompt.Run()
		if err != nil {
			return fmt.Errorf("issue key: %w", err)
		}
		in.Key = k
	}
	key, err := issues.NormalizeKey(in.Key)
	if err != nil {
		return err
	}
	in.Key = key

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	existing, err := a.issues.Fetch(ctx, key)
	if err != nil && !errors.Is(err, rcaerr.ErrNotFound) {
		return err
	}

	if strings.TrimSpace(in.Summary) == "" && (existing == nil || existing.Summary == "") {
		s, err := (&promptui.Prompt{Label: "Summary", Validate: required}).Run()
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		in.Summary = strings.TrimSpace(s)
	}
	if in.Domain == "" && !f.Changed("domain") && existing == nil {
		items := []string{"auto"}
		for _, d := range classifier.Domains {
			items = append(items, string(d))
		}
		idx, d, err := (&promptui.Select{Label: "Domain", Items: items}).Run()
		if err != nil {
			return fmt.Errorf("domain selection: %w", err)
		}
		if idx > 0 {
			in.Domain = d
		}
	}

	doc := mergeIntake(existing, in)
	res, err := newIndexPipeline(cmd, a).Ingest(ctx, []issues.Document{doc}, false)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("storing %s: %w", key, errors.Join(res.Errors...))
	}
	fmt.Fprintf(os.Stderr, "Stored %s (embedded: %t)\n", key, res.Embedded == 1)

	req := orchestrator.Request{IssueKey: key, Domain: in.Domain, OS: in.OS, Component: in.Component}
	req.LogPath, _ = f.GetString("logs")
	req.Notes, _ = f.GetString("notes")
	req.SaveRun, _ = f.GetBool("save-run")
	req.External = a.cfg.Pipeline.ExternalKnowledge
	if f.Changed("external") {
		req.External, _ = f.GetBool("external")
	}

	orch, err := a.pipeline()
	if err != nil {
		return err
	}
	out, err := orch.Run(ctx, req)
	if err != nil {
		return err
	}
	if err := writeResult(os.Stdout, out, "text"); err != nil {
		return err
	}
	if out.Meta.RunID != "" {
		fmt.Printf("\nSaved analysis run: id=%s\n", out.Meta.RunID)
	}
	return nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}
