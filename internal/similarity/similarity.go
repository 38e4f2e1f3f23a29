// Package similarity ranks stored issue vectors against a query vector by
// cosine similarity. It is a brute-force scan over an in-memory corpus.
package similarity

import (
	"context"
	"math"
	"sort"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/embeddings"
)

// Entry is one corpus member.
type Entry struct {
	Key    string
	Vector embeddings.Vector
}

// Match is a scored corpus member.
type Match struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// Options restricts the searched pool. A nil Include means no restriction;
// a non-nil empty Include matches nothing.
type Options struct {
	Include []string
	Exclude []string
}

// Cosine returns the cosine similarity of a and b clamped to [-1, 1]. It is
// 0 when either vector is zero or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return max(-1, min(1, s))
}

// Search scores every comparable entry against query and returns at most
// limit matches, best first. Entries whose vectors are not comparable with
// the query (dimensions or provider differ) are skipped. Ties keep corpus
// order. A limit <= 0 returns all matches.
func Search(query embeddings.Vector, corpus []Entry, limit int, opts Options) []Match {
	var include map[string]struct{}
	if opts.Include != nil {
		include = make(map[string]struct{}, len(opts.Include))
		for _, k := range opts.Include {
			include[k] = struct{}{}
		}
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, k := range opts.Exclude {
		exclude[k] = struct{}{}
	}

	matches := make([]Match, 0)
	for _, e := range corpus {
		if include != nil {
			if _, ok := include[e.Key]; !ok {
				continue
			}
		}
		if !query.Comparable(e.Vector) {
			continue
		}
		score := Cosine(query.Values, e.Vector.Values)
		if _, ok := exclude[e.Key]; ok {
			continue
		}
		matches = append(matches, Match{Key: e.Key, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// QueryEmbedder is the part of the embedding service the index needs.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string, task embeddings.TaskType) (embeddings.Vector, error)
}

// Index embeds query text and searches a corpus with it.
type Index struct {
	embedder QueryEmbedder
}

// NewIndex creates an index backed by the given embedder.
func NewIndex(embedder QueryEmbedder) *Index {
	return &Index{embedder: embedder}
}

// Query embeds text as a retrieval query and returns the ranked matches
// along with the query vector.
func (x *Index) Query(ctx context.Context, text string, corpus []Entry, limit int, opts Options) ([]Match, embeddings.Vector, error) {
	vec, err := x.embedder.Embed(ctx, text, embeddings.TaskRetrievalQuery)
	if err != nil {
		return nil, embeddings.Vector{}, err
	}
	return Search(vec, corpus, limit, opts), vec, nil
}

// TopScore returns the best score in matches, or 0 when there are none.
func TopScore(matches []Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	return matches[0].Score
}
