package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/indexer"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file or glob]...",
	Short: "Load issue exports into the database and embed them",
	Long: `Reads issues from JSON (one object or an array) and JSONL files, stores them
and embeds every issue whose text changed since the last ingest. Patterns
support ** (e.g. "exports/**/*.json").`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute embeddings for stored issues",
	Long:  `Embeds stored issues again with the configured provider. Run it after changing embedding.provider or embedding.model.`,
	Args:  cobra.NoArgs,
	RunE:  runReembed,
}

func init() {
	ingestCmd.Flags().Bool("force", false, "embed every issue, even unchanged ones")
	ingestCmd.Flags().Int("concurrency", 0, "parallel embedding requests (default pipeline.max_workers)")
	reembedCmd.Flags().Bool("force", false, "embed every issue, even unchanged ones")
	reembedCmd.Flags().Int("concurrency", 0, "parallel embedding requests (default pipeline.max_workers)")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reembedCmd)
}

func newIndexPipeline(cmd *cobra.Command, a *app) *indexer.Pipeline {
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = a.cfg.Pipeline.MaxWorkers
	}
	statePath := filepath.Join(filepath.Dir(a.cfg.DatabasePath), "index_state.json")
	return indexer.NewPipeline(a.issues, a.embedder, statePath, concurrency, a.logger)
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := indexer.ExpandPatterns(args)
	if err != nil {
		return err
	}
	var docs []issues.Document
	for _, f := range files {
		loaded, err := indexer.LoadFile(f)
		if err != nil {
			return err
		}
		docs = append(docs, loaded...)
	}
	if len(docs) == 0 {
		fmt.Println("No issues found in", len(files), "file(s).")
		return nil
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	force, _ := cmd.Flags().GetBool("force")
	p := newIndexPipeline(cmd, a)
	onProgress, finish := trackProgress(progress.NewReporter("Embedding issues"))
	p.SetProgressFunc(onProgress)

	res, err := p.Ingest(context.Background(), docs, force)
	finish()
	if err != nil {
		return err
	}
	printIndexResult(res)
	return nil
}

func runReembed(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	force, _ := cmd.Flags().GetBool("force")
	p := newIndexPipeline(cmd, a)
	onProgress, finish := trackProgress(progress.NewReporter("Re-embedding issues"))
	p.SetProgressFunc(onProgress)

	res, err := p.Reembed(context.Background(), force)
	finish()
	if err != nil {
		return err
	}
	printIndexResult(res)
	return nil
}

func printIndexResult(res *indexer.PipelineResult) {
	fmt.Printf("Stored %d, embedded %d, unchanged %d, failed %d in %s\n",
		res.Stored, res.Embedded, res.Skipped, res.Failed, res.Duration.Round(time.Millisecond))
	for _, err := range res.Errors {
		fmt.Fprintf(os.Stderr, "  %v\n", err)
	}
}

// trackProgress adapts a reporter to the indexer's progress callback, which
// fires from several goroutines.
func trackProgress(r progress.Reporter) (indexer.ProgressFunc, func()) {
	var mu sync.Mutex
	started := false
	onProgress := func(processed, total int, key string) {
		mu.Lock()
		defer mu.Unlock()
		if !started {
			r.Start(total)
			started = true
		}
		r.Update(processed, key)
	}
	finish := func() {
		mu.Lock()
		defer mu.Unlock()
		if started {
			r.Finish()
		}
	}
	return onProgress, finish
}
