package embeddings

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/metrics"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

// Service embeds single texts through an Embedder, consulting the cache
// first. A nil cache disables caching entirely.
type Service struct {
	embedder Embedder
	cache    *Cache
	logger   *zap.Logger
}

// NewService wires an embedder and an optional cache.
func NewService(embedder Embedder, cache *Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embedder: embedder, cache: cache, logger: logger}
}

// Provider returns the provider tag of the underlying embedder.
func (s *Service) Provider() string { return s.embedder.Provider() }

// Model returns the model name of the underlying embedder.
func (s *Service) Model() string { return s.embedder.Name() }

// Dimensions returns the nominal vector width of the underlying embedder.
func (s *Service) Dimensions() int { return s.embedder.Dimensions() }

// Embed returns the vector for text. Provider failures surface as
// rcaerr.ErrProvider and empty vectors as rcaerr.ErrDimension.
func (s *Service) Embed(ctx context.Context, text string, task TaskType) (Vector, error) {
	provider := s.embedder.Provider()
	model := s.embedder.Name()

	var key string
	if s.cache != nil {
		key = CacheKey(provider, task, model, text)
		if vec, ok := s.cache.Get(key); ok {
			metrics.EmbeddingCacheHits.Inc()
			return Vector{Values: vec, Provider: provider, Model: model, Dimensions: len(vec)}, nil
		}
		metrics.EmbeddingCacheMisses.Inc()
	}

	out, err := s.embedder.Embed(ctx, []string{text}, task)
	if err != nil {
		metrics.EmbedRequestsTotal.WithLabelValues(provider, "error").Inc()
		s.logger.Warn("embedding failed", zap.String("provider", provider), zap.Error(err))
		return Vector{}, rcaerr.New(rcaerr.KindProvider, "embed", err)
	}
	if len(out) == 0 || len(out[0]) == 0 {
		metrics.EmbedRequestsTotal.WithLabelValues(provider, "error").Inc()
		return Vector{}, rcaerr.New(rcaerr.KindDimension, "embed", fmt.Errorf("%s returned a zero-length vector", provider))
	}
	metrics.EmbedRequestsTotal.WithLabelValues(provider, "ok").Inc()

	vec := out[0]
	if s.cache != nil {
		s.cache.Add(key, vec)
	}
	return Vector{Values: vec, Provider: provider, Model: model, Dimensions: len(vec)}, nil
}
