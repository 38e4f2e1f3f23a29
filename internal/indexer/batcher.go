package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/embeddings"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

// Batcher embeds issues concurrently with configurable parallelism.
type Batcher struct {
	concurrency int
	embedder    DocumentEmbedder
	onProgress  ProgressFunc
}

// NewBatcher creates a new Batcher with the given concurrency limit.
func NewBatcher(concurrency int, embedder DocumentEmbedder, onProgress ProgressFunc) *Batcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batcher{
		concurrency: concurrency,
		embedder:    embedder,
		onProgress:  onProgress,
	}
}

// Embedded is one issue and its document vector.
type Embedded struct {
	Key    string
	Hash   string
	Vector embeddings.Vector
}

// BatchResult holds collected vectors and errors from batch processing.
type BatchResult struct {
	Results []Embedded
	Errors  []error
}

// EmbedIssues embeds each document's layout text. After a quota failure the
// remaining issues are skipped.
func (b *Batcher) EmbedIssues(ctx context.Context, docs []issues.Document) *BatchResult {
	total := len(docs)
	if total == 0 {
		return &BatchResult{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var quotaExhausted atomic.Bool

	sem := make(chan struct{}, b.concurrency)
	var mu sync.Mutex
	var processed atomic.Int64
	result := &BatchResult{}

	done := func(key string) {
		count := processed.Add(1)
		if b.onProgress != nil {
			b.onProgress(int(count), total, key)
		}
	}
	fail := func(err error) {
		mu.Lock()
		result.Errors = append(result.Errors, err)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for _, doc := range docs {
		if quotaExhausted.Load() {
			fail(fmt.Errorf("embed %s: skipped (provider quota exhausted)", doc.Key))
			done(doc.Key)
			continue
		}

		select {
		case <-ctx.Done():
			fail(fmt.Errorf("embed %s: %w", doc.Key, ctx.Err()))
			done(doc.Key)
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(d issues.Document) {
			defer wg.Done()
			defer func() { <-sem }()

			text := d.EmbeddingText()
			vec, err := b.embedder.Embed(ctx, text, embeddings.TaskRetrievalDocument)
			if err != nil {
				fail(fmt.Errorf("embed %s: %w", d.Key, err))
				if isQuotaError(err) {
					quotaExhausted.Store(true)
					cancel()
				}
			} else {
				mu.Lock()
				result.Results = append(result.Results, Embedded{Key: d.Key, Hash: ContentHash(text), Vector: vec})
				mu.Unlock()
			}
			done(d.Key)
		}(doc)
	}

	wg.Wait()
	return result
}

func isQuotaError(err error) bool {
	if !errors.Is(err, rcaerr.ErrProvider) {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "quota") || strings.Contains(s, "429")
}
