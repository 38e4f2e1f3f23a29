package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
)

// Pipeline stores issues and embeds the ones whose text changed since the
// last run.
type Pipeline struct {
	store       Store
	embedder    DocumentEmbedder
	statePath   string
	concurrency int
	onProgress  ProgressFunc
	logger      *zap.Logger
}

// NewPipeline creates a new Pipeline. An empty statePath disables change
// tracking, so every issue is embedded.
func NewPipeline(store Store, embedder DocumentEmbedder, statePath string, concurrency int, logger *zap.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:       store,
		embedder:    embedder,
		statePath:   statePath,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SetProgressFunc sets the progress callback.
func (p *Pipeline) SetProgressFunc(fn ProgressFunc) {
	p.onProgress = fn
}

// Ingest upserts docs and embeds those whose text changed. With force set,
// unchanged issues are embedded again.
func (p *Pipeline) Ingest(ctx context.Context, docs []issues.Document, force bool) (*PipelineResult, error) {
	start := time.Now()
	result := &PipelineResult{}

	var stored []issues.Document
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.store.Upsert(ctx, d); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("store %s: %w", d.Key, err))
			continue
		}
		stored = append(stored, d)
	}
	result.Stored = len(stored)

	if err := p.embed(ctx, stored, force, result); err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Reembed recomputes embeddings for issues already in the store, for example
// after switching embedding provider.
func (p *Pipeline) Reembed(ctx context.Context, force bool) (*PipelineResult, error) {
	start := time.Now()
	docs, err := p.store.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	result := &PipelineResult{}
	if err := p.embed(ctx, docs, force, result); err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (p *Pipeline) embed(ctx context.Context, docs []issues.Document, force bool, result *PipelineResult) error {
	state := &IndexState{IssueHashes: make(map[string]string)}
	if p.statePath != "" {
		s, err := LoadState(p.statePath)
		if err != nil {
			p.logger.Warn("ignoring unreadable index state", zap.String("path", p.statePath), zap.Error(err))
		} else {
			state = s
		}
	}
	state.Retarget(p.embedder.Provider(), p.embedder.Model())

	var pending []issues.Document
	for i := range docs {
		if !force && !state.IsIssueChanged(docs[i].Key, ContentHash(docs[i].EmbeddingText())) {
			result.Skipped++
			continue
		}
		pending = append(pending, docs[i])
	}
	p.logger.Info("embedding issues",
		zap.Int("pending", len(pending)),
		zap.Int("skipped", result.Skipped),
		zap.String("provider", p.embedder.Provider()),
		zap.String("model", p.embedder.Model()),
	)

	batcher := NewBatcher(p.concurrency, p.embedder, p.onProgress)
	br := batcher.EmbedIssues(ctx, pending)
	result.Errors = append(result.Errors, br.Errors...)
	result.Failed += len(br.Errors)

	for _, e := range br.Results {
		if err := p.store.SaveEmbedding(ctx, e.Key, e.Vector); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("save embedding %s: %w", e.Key, err))
			continue
		}
		state.IssueHashes[e.Key] = e.Hash
		result.Embedded++
	}

	if p.statePath != "" {
		if err := state.SaveState(p.statePath); err != nil {
			return fmt.Errorf("saving index state: %w", err)
		}
	}
	return nil
}
