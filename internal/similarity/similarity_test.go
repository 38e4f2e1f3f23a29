package similarity

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/embeddings"
)

func vec(vals ...float32) embeddings.Vector {
	return embeddings.Vector{Values: vals, Provider: "mock", Dimensions: len(vals)}
}

func TestCosineIdentityAndSymmetry(t *testing.T) {
	a := []float32{0.3, -0.2, 0.9}
	b := []float32{0.1, 0.5, -0.4}
	if got := Cosine(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("cosine(v,v) = %f, want 1", got)
	}
	if Cosine(a, b) != Cosine(b, a) {
		t.Error("cosine should be symmetric")
	}
}

func TestCosineEdgeCases(t *testing.T) {
	if got := Cosine([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector cosine = %f, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched cosine = %f, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{-1, 0}); got != -1 {
		t.Errorf("opposite cosine = %f, want -1", got)
	}
}

func TestSearchRanksDescending(t *testing.T) {
	corpus := []Entry{
		{Key: "A-1", Vector: vec(0, 1)},
		{Key: "A-2", Vector: vec(1, 0)},
		{Key: "A-3", Vector: vec(1, 1)},
	}
	got := Search(vec(1, 0), corpus, 10, Options{})
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	want := []string{"A-2", "A-3", "A-1"}
	for i, k := range want {
		if got[i].Key != k {
			t.Errorf("rank %d = %s, want %s", i, got[i].Key, k)
		}
	}
}

func TestSearchStableTies(t *testing.T) {
	corpus := []Entry{
		{Key: "T-3", Vector: vec(1, 0)},
		{Key: "T-1", Vector: vec(2, 0)},
		{Key: "T-2", Vector: vec(3, 0)},
	}
	got := Search(vec(1, 0), corpus, 0, Options{})
	for i, k := range []string{"T-3", "T-1", "T-2"} {
		if got[i].Key != k {
			t.Errorf("tie order %d = %s, want %s", i, got[i].Key, k)
		}
	}
}

func TestSearchLimit(t *testing.T) {
	corpus := []Entry{
		{Key: "A-1", Vector: vec(1, 0)},
		{Key: "A-2", Vector: vec(1, 0.1)},
		{Key: "A-3", Vector: vec(1, 0.2)},
	}
	if got := Search(vec(1, 0), corpus, 2, Options{}); len(got) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got))
	}
	if got := Search(vec(1, 0), corpus, 0, Options{}); len(got) != 3 {
		t.Errorf("limit 0 should return all, got %d", len(got))
	}
}

func TestSearchSkipsIncomparable(t *testing.T) {
	other := embeddings.Vector{Values: []float32{1, 0}, Provider: "openai"}
	corpus := []Entry{
		{Key: "A-1", Vector: vec(1, 0, 0)},
		{Key: "A-2", Vector: other},
		{Key: "A-3", Vector: vec(1, 0)},
		{Key: "A-4", Vector: embeddings.Vector{}},
	}
	got := Search(vec(1, 0), corpus, 10, Options{})
	if len(got) != 1 || got[0].Key != "A-3" {
		t.Errorf("expected only A-3, got %+v", got)
	}
}

func TestSearchExclude(t *testing.T) {
	corpus := []Entry{
		{Key: "A-1", Vector: vec(1, 0)},
		{Key: "A-2", Vector: vec(1, 0.5)},
	}
	got := Search(vec(1, 0), corpus, 10, Options{Exclude: []string{"A-1"}})
	for _, m := range got {
		if m.Key == "A-1" {
			t.Error("excluded key returned")
		}
	}
	if len(got) != 1 {
		t.Errorf("expected 1 match, got %d", len(got))
	}
}

func TestSearchInclude(t *testing.T) {
	corpus := []Entry{
		{Key: "A-1", Vector: vec(1, 0)},
		{Key: "A-2", Vector: vec(1, 0.5)},
		{Key: "A-3", Vector: vec(0, 1)},
	}
	got := Search(vec(1, 0), corpus, 10, Options{Include: []string{"A-2", "A-3"}})
	allowed := map[string]bool{"A-2": true, "A-3": true}
	for _, m := range got {
		if !allowed[m.Key] {
			t.Errorf("key %s outside include set", m.Key)
		}
	}
	if len(got) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got))
	}

	if got := Search(vec(1, 0), corpus, 10, Options{Include: []string{}}); len(got) != 0 {
		t.Errorf("empty include should match nothing, got %d", len(got))
	}
}

func TestSearchEmptyCorpus(t *testing.T) {
	got := Search(vec(1, 0), nil, 5, Options{})
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

type fakeEmbedder struct {
	v   embeddings.Vector
	err error
	got embeddings.TaskType
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, task embeddings.TaskType) (embeddings.Vector, error) {
	f.got = task
	return f.v, f.err
}

func TestIndexQueryUsesRetrievalQuery(t *testing.T) {
	fe := &fakeEmbedder{v: vec(1, 0)}
	idx := NewIndex(fe)
	matches, q, err := idx.Query(context.Background(), "flicker", []Entry{{Key: "A-1", Vector: vec(1, 0)}}, 5, Options{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if fe.got != embeddings.TaskRetrievalQuery {
		t.Errorf("task = %q, want retrieval_query", fe.got)
	}
	if len(q.Values) != 2 || len(matches) != 1 {
		t.Errorf("unexpected result %v %v", q, matches)
	}
	if math.Abs(TopScore(matches)-1) > 1e-9 {
		t.Errorf("top score = %f, want 1", TopScore(matches))
	}
}

// wordEmbedder counts vocabulary words, so texts sharing words score above zero.
type wordEmbedder struct {
	vocab []string
}

func (e wordEmbedder) Embed(_ context.Context, text string, _ embeddings.TaskType) (embeddings.Vector, error) {
	text = strings.ToLower(text)
	v := make([]float32, len(e.vocab))
	for i, w := range e.vocab {
		v[i] = float32(strings.Count(text, w))
	}
	return embeddings.Vector{Values: v, Provider: "test", Model: "words", Dimensions: len(v)}, nil
}

func TestIndexQueryRelatedDocument(t *testing.T) {
	ctx := context.Background()
	emb := wordEmbedder{vocab: []string{"hdmi", "external", "display", "flicker", "dock", "audio"}}

	doc, err := emb.Embed(ctx, "HDMI flicker on dock", embeddings.TaskRetrievalDocument)
	if err != nil {
		t.Fatal(err)
	}
	corpus := []Entry{{Key: "PROJ-1", Vector: doc}}

	matches, _, err := NewIndex(emb).Query(ctx, "external display flicker", corpus, 5, Options{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].Key != "PROJ-1" {
		t.Fatalf("matches = %+v, want PROJ-1", matches)
	}
	if s := matches[0].Score; s <= 0 || s > 1 {
		t.Errorf("score = %f, want in (0, 1]", s)
	}
}

func TestIndexQueryPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	idx := NewIndex(&fakeEmbedder{err: boom})
	if _, _, err := idx.Query(context.Background(), "x", nil, 5, Options{}); !errors.Is(err, boom) {
		t.Errorf("expected embed error, got %v", err)
	}
}

func TestTopScoreEmpty(t *testing.T) {
	if TopScore(nil) != 0 {
		t.Error("expected 0 for no matches")
	}
}
