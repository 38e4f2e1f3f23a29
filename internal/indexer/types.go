// Package indexer loads issue exports into the issue store and keeps their
// embeddings current.
package indexer

import (
	"context"
	"time"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/embeddings"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
)

// Store is the part of the issue store the indexer writes to.
type Store interface {
	Upsert(ctx context.Context, doc issues.Document) error
	SaveEmbedding(ctx context.Context, key string, vec embeddings.Vector) error
	List(ctx context.Context, limit int) ([]issues.Document, error)
}

// DocumentEmbedder embeds issue text. *embeddings.Service satisfies it.
type DocumentEmbedder interface {
	Embed(ctx context.Context, text string, task embeddings.TaskType) (embeddings.Vector, error)
	Provider() string
	Model() string
}

// PipelineResult holds the outcome of an ingest or re-embed run.
type PipelineResult struct {
	Stored   int
	Embedded int
	Skipped  int
	Failed   int
	Duration time.Duration
	Errors   []error
}

// ProgressFunc is called during batch processing to report progress.
type ProgressFunc func(processed int, total int, currentKey string)
