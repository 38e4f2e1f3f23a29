// Package embeddings turns issue text into fixed-length vectors through
// interchangeable providers, with an optional in-process cache in front.
package embeddings

import "context"

// TaskType tells providers whether a text is a search query or a stored
// document. Providers that do not distinguish the two ignore it.
type TaskType string

const (
	TaskRetrievalQuery    TaskType = "retrieval_query"
	TaskRetrievalDocument TaskType = "retrieval_document"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string

	// Provider returns the provider tag stored alongside each vector.
	Provider() string
}

// Vector is an embedding tagged with the provider and model that produced it.
type Vector struct {
	Values     []float32 `json:"values"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
}

// Comparable reports whether two vectors may be scored against each other:
// same dimensionality and, when both carry one, the same provider tag.
func (v Vector) Comparable(o Vector) bool {
	if len(v.Values) == 0 || len(v.Values) != len(o.Values) {
		return false
	}
	if v.Provider != "" && o.Provider != "" && v.Provider != o.Provider {
		return false
	}
	return true
}
