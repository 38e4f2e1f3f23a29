package classifier

import (
	"math"
	"sort"
)

// Example is one weakly labeled training document.
type Example struct {
	Text  string
	Label Domain
}

// Model is a multinomial Naive Bayes model with Laplace smoothing.
type Model struct {
	alpha      float64
	domains    []Domain
	vocab      map[string]int
	wordCounts map[Domain]map[int]int
	totals     map[Domain]int
	docs       map[Domain]int
	priorsLog  map[Domain]float64
}

// Train fits a model on examples. The model is not safe to retrain; build
// a new one per request.
func Train(examples []Example, alpha float64) *Model {
	seen := make(map[Domain]bool)
	for _, ex := range examples {
		seen[ex.Label] = true
	}
	domains := make([]Domain, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	m := &Model{
		alpha:      alpha,
		domains:    domains,
		vocab:      make(map[string]int),
		wordCounts: make(map[Domain]map[int]int, len(domains)),
		totals:     make(map[Domain]int, len(domains)),
		docs:       make(map[Domain]int, len(domains)),
		priorsLog:  make(map[Domain]float64, len(domains)),
	}
	for _, d := range domains {
		m.wordCounts[d] = make(map[int]int)
	}

	for _, ex := range examples {
		m.docs[ex.Label]++
		wc := m.wordCounts[ex.Label]
		for _, tok := range Tokenize(ex.Text) {
			id, ok := m.vocab[tok]
			if !ok {
				id = len(m.vocab)
				m.vocab[tok] = id
			}
			wc[id]++
			m.totals[ex.Label]++
		}
	}

	total := float64(len(examples))
	for _, d := range domains {
		m.priorsLog[d] = math.Log((float64(m.docs[d]) + alpha) / (total + alpha*float64(len(domains))))
	}
	return m
}

// VocabularySize returns the number of distinct training tokens.
func (m *Model) VocabularySize() int { return len(m.vocab) }

// Domains returns the classes the model was trained on.
func (m *Model) Domains() []Domain { return m.domains }

// Has reports whether d was seen in training.
func (m *Model) Has(d Domain) bool {
	_, ok := m.docs[d]
	return ok
}

// PredictProba returns a probability per trained domain. Text with no known
// tokens gets a uniform distribution.
func (m *Model) PredictProba(text string) map[Domain]float64 {
	out := make(map[Domain]float64, len(m.domains))
	if len(m.domains) == 0 {
		return out
	}

	counts := make(map[int]int)
	for _, tok := range Tokenize(text) {
		if id, ok := m.vocab[tok]; ok {
			counts[id]++
		}
	}
	if len(counts) == 0 {
		u := 1 / float64(len(m.domains))
		for _, d := range m.domains {
			out[d] = u
		}
		return out
	}

	v := float64(max(len(m.vocab), 1))
	scores := make(map[Domain]float64, len(m.domains))
	best := math.Inf(-1)
	for _, d := range m.domains {
		s := m.priorsLog[d]
		denom := float64(m.totals[d]) + m.alpha*v
		wc := m.wordCounts[d]
		for id, c := range counts {
			s += float64(c) * math.Log((float64(wc[id])+m.alpha)/denom)
		}
		scores[d] = s
		best = max(best, s)
	}

	var z float64
	for _, d := range m.domains {
		e := math.Exp(scores[d] - best)
		out[d] = e
		z += e
	}
	for _, d := range m.domains {
		out[d] /= z
	}
	return out
}
