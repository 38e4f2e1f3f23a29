// Package rcaerr defines the typed error kinds shared by the retrieval
// pipeline. Callers classify failures with errors.Is against the sentinels.
package rcaerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindProvider     Kind = "provider"
	KindNetwork      Kind = "network"
	KindDimension    Kind = "dimension"
)

// Sentinels for errors.Is matching.
var (
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrProvider     = &Error{Kind: KindProvider}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrDimension    = &Error{Kind: KindDimension}
)

// Error is a classified failure. Step names the pipeline step or component
// that produced it.
type Error struct {
	Kind Kind
	Step string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Step != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Step, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Step != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Step)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind. A dimension error is also a
// provider error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindDimension && t.Kind == KindProvider
}

// New builds a classified error.
func New(kind Kind, step string, err error) *Error {
	return &Error{Kind: kind, Step: step, Err: err}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, step, format string, args ...any) *Error {
	return &Error{Kind: kind, Step: step, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
