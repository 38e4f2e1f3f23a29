package orchestrator

import (
	"fmt"
	"time"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/classifier"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/external"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/logsignals"
)

// State is a pipeline state.
type State int

const (
	StateInit State = iota
	StateFetching
	StateSimilarity
	StateFallbackCheck
	StateAggregating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetching:
		return "fetching"
	case StateSimilarity:
		return "similarity"
	case StateFallbackCheck:
		return "fallback_check"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for c := StateInit; c <= StateFailed; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown pipeline state %q", b)
}

// Status is the kind of a stage outcome.
type Status int

const (
	StatusOk Status = iota
	StatusDegraded
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusDegraded:
		return "degraded"
	default:
		return "fatal"
	}
}

// Outcome is the result of one stage: a value, a value with a note about
// what was skipped, or a fatal error.
type Outcome[T any] struct {
	Status Status
	Value  T
	Reason string
	Err    error
}

// Ok wraps a successful stage value.
func Ok[T any](v T) Outcome[T] { return Outcome[T]{Status: StatusOk, Value: v} }

// Degraded wraps a partial stage value and the reason it is partial.
func Degraded[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Status: StatusDegraded, Value: v, Reason: reason}
}

// Fatal wraps a stage failure.
func Fatal[T any](err error) Outcome[T] { return Outcome[T]{Status: StatusFatal, Err: err} }

// StageError names the state in which a required stage failed. errors.Is
// and errors.As see through it to the underlying error.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// FetchResult is the fetched target issue.
type FetchResult struct {
	Issue *issues.Document
}

// LogResult is the extracted log evidence. Signals is nil when no logs were
// supplied.
type LogResult struct {
	Signals   *logsignals.Result
	Tail      string
	Truncated bool
}

// SimilarityResult is the ranked local evidence.
type SimilarityResult struct {
	Query     string
	Matches   []issues.Match
	TopScore  float64
	Prefilter classifier.Diagnostics
	Embedding EmbeddingInfo
	Corpus    int
}

// EmbeddingInfo identifies the vector space the query was embedded into.
type EmbeddingInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// ExternalResult records whether external search ran and why.
type ExternalResult struct {
	Fired    bool
	Query    string
	Response *external.Response
	Reason   string
}

// Degradation notes an optional stage that was skipped or failed.
type Degradation struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Event is emitted to a request's observer as the pipeline advances.
type Event struct {
	State   State         `json:"state"`
	Elapsed time.Duration `json:"elapsed"`
	Detail  string        `json:"detail,omitempty"`
}
