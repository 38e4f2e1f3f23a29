package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand/v2"
)

// MockEmbedder produces deterministic unit vectors seeded from a hash of the
// text. It needs no network or credentials.
type MockEmbedder struct {
	model string
	dims  int
}

// NewMockEmbedder creates a deterministic embedder of the given width.
func NewMockEmbedder(model string, dims int) *MockEmbedder {
	if model == "" {
		model = "mock"
	}
	if dims <= 0 {
		dims = 768
	}
	return &MockEmbedder{model: model, dims: dims}
}

func (e *MockEmbedder) Name() string     { return e.model }
func (e *MockEmbedder) Dimensions() int  { return e.dims }
func (e *MockEmbedder) Provider() string { return "mock" }

func (e *MockEmbedder) Embed(ctx context.Context, texts []string, _ TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *MockEmbedder) vector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16])))

	raw := make([]float64, e.dims)
	var norm float64
	for i := range raw {
		v := rng.Float64()*2 - 1
		raw[i] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dims)
	if norm == 0 {
		return vec
	}
	for i, v := range raw {
		vec[i] = float32(v / norm)
	}
	return vec
}
