package classifier

import "strings"

// Mode is the prefilter that was applied.
type Mode string

const (
	ModeComponent Mode = "component"
	ModeDomain    Mode = "domain"
	ModeNone      Mode = "none"
)

// Reason explains the classifier outcome.
type Reason string

const (
	ReasonOK                 Reason = "ok"
	ReasonWeakTrainingSignal Reason = "weak_training_signal"
	ReasonNoDomain           Reason = "no_domain"
	ReasonUnknownDomain      Reason = "unknown_domain"
	ReasonUntrainedDomain    Reason = "untrained_domain"
)

// Training thresholds below which only keyword hits are used.
const (
	MinTrainingExamples = 10
	MinVocabularySize   = 50
)

// Candidate is the metadata of one corpus document.
type Candidate struct {
	Key         string
	Summary     string
	Description string
	Components  []string
	Labels      []string
}

// Diagnostics is the machine-readable account of a prefilter decision.
type Diagnostics struct {
	Mode             Mode   `json:"mode"`
	Reason           Reason `json:"reason"`
	Component        string `json:"component,omitempty"`
	Domain           Domain `json:"domain,omitempty"`
	ComponentHits    int    `json:"component_hits"`
	KeywordHits      int    `json:"keyword_hits"`
	ClassifierHits   int    `json:"classifier_hits"`
	TrainingExamples int    `json:"training_examples"`
	VocabularySize   int    `json:"vocabulary_size"`
	Candidates       int    `json:"candidates"`
}

// Prefilter is the resolved include set. Include is nil when the search is
// unrestricted.
type Prefilter struct {
	Include     []string
	Diagnostics Diagnostics
}

// Target describes what the caller is looking for.
type Target struct {
	ComponentHint string
	DomainHint    string
	Issue         Candidate
}

// Classifier holds the prefilter thresholds. It keeps no model state; each
// call trains from the pool it is given.
type Classifier struct {
	Threshold     float64
	MinCandidates int
	Alpha         float64
}

// New creates a classifier with Laplace smoothing.
func New(threshold float64, minCandidates int) *Classifier {
	return &Classifier{Threshold: threshold, MinCandidates: minCandidates, Alpha: 1.0}
}

// ResolveComponent returns the component hint, or the target issue's first
// component when no hint is given.
func ResolveComponent(t Target) string {
	if c := strings.TrimSpace(t.ComponentHint); c != "" {
		return c
	}
	for _, c := range t.Issue.Components {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

// ComponentFilter returns the keys whose components equal or contain the
// component, case-insensitively, in pool order.
func ComponentFilter(component string, pool []Candidate) []string {
	target := strings.ToLower(strings.TrimSpace(component))
	if target == "" {
		return nil
	}
	var keys []string
	for _, c := range pool {
		for _, comp := range c.Components {
			if strings.Contains(strings.ToLower(comp), target) {
				keys = append(keys, c.Key)
				break
			}
		}
	}
	return keys
}

// DomainFilter returns pool keys that belong to domain: keyword hits on
// metadata first, then Naive Bayes hits on summary and description, without
// duplicates.
func (c *Classifier) DomainFilter(domain Domain, pool []Candidate) ([]string, Diagnostics) {
	diag := Diagnostics{Domain: domain, Reason: ReasonOK}

	var keywordHits []string
	var examples []Example
	for _, cand := range pool {
		if matchesDomain(metadataText(cand.Components, cand.Labels), domain) {
			keywordHits = append(keywordHits, cand.Key)
		}
		if label, ok := WeakLabel(cand.Components, cand.Labels); ok {
			examples = append(examples, Example{Text: cand.Summary + " " + cand.Description, Label: label})
		}
	}
	diag.KeywordHits = len(keywordHits)
	diag.TrainingExamples = len(examples)

	var classifierHits []string
	model := Train(examples, c.Alpha)
	diag.VocabularySize = model.VocabularySize()

	switch {
	case len(examples) < MinTrainingExamples || model.VocabularySize() < MinVocabularySize:
		diag.Reason = ReasonWeakTrainingSignal
	case !model.Has(domain):
		diag.Reason = ReasonUntrainedDomain
	default:
		for _, cand := range pool {
			probs := model.PredictProba(cand.Summary + " " + cand.Description)
			if probs[domain] >= c.Threshold {
				classifierHits = append(classifierHits, cand.Key)
			}
		}
	}
	diag.ClassifierHits = len(classifierHits)

	merged := mergeUnique(keywordHits, classifierHits)
	diag.Candidates = len(merged)
	return merged, diag
}

// Resolve applies the graduated fallback: the component prefilter when it
// yields at least MinCandidates keys, else the domain prefilter under the
// same bar, else no restriction.
func (c *Classifier) Resolve(t Target, pool []Candidate) Prefilter {
	diag := Diagnostics{Mode: ModeNone, Reason: ReasonOK}

	if comp := ResolveComponent(t); comp != "" {
		hits := ComponentFilter(comp, pool)
		diag.Component = comp
		diag.ComponentHits = len(hits)
		if len(hits) >= c.MinCandidates {
			diag.Mode = ModeComponent
			diag.Candidates = len(hits)
			return Prefilter{Include: hits, Diagnostics: diag}
		}
	}

	var domain Domain
	if hint := strings.TrimSpace(t.DomainHint); hint != "" {
		d, ok := ParseDomain(hint)
		if !ok {
			diag.Reason = ReasonUnknownDomain
			diag.Candidates = len(pool)
			return Prefilter{Diagnostics: diag}
		}
		domain = d
	} else if d, ok := WeakLabel(t.Issue.Components, t.Issue.Labels); ok {
		domain = d
	} else {
		diag.Reason = ReasonNoDomain
		diag.Candidates = len(pool)
		return Prefilter{Diagnostics: diag}
	}

	hits, dd := c.DomainFilter(domain, pool)
	dd.Component = diag.Component
	dd.ComponentHits = diag.ComponentHits
	if len(hits) >= c.MinCandidates {
		dd.Mode = ModeDomain
		return Prefilter{Include: hits, Diagnostics: dd}
	}
	dd.Mode = ModeNone
	dd.Candidates = len(pool)
	return Prefilter{Diagnostics: dd}
}

func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, k := range l {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
