package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPattern is matched by every InvalidPatternError.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrSubstitutionTimeout reports a substitution that ran past the match
	// budget. The cell it was applied to keeps its original value.
	ErrSubstitutionTimeout = errors.New("substitution timed out")

	// ErrNoViableCandidate is matched by every NoViableCandidateError.
	ErrNoViableCandidate = errors.New("no viable candidate")

	// ErrMissingTemplate marks a candidate whose intent needs a replacement or
	// format that was not supplied.
	ErrMissingTemplate = errors.New("missing template")
)

// InvalidPatternError wraps the regex engine's parse diagnostic.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidPattern) match.
func (e *InvalidPatternError) Is(target error) bool {
	return target == ErrInvalidPattern
}

// NoViableCandidateError is returned when no candidate changed a cell.
//
// Compiled == 0 means nothing was usable at all (every pattern failed to
// compile or lacked its template). Compiled > 0 means candidates ran but none
// matched anything in the target columns.
type NoViableCandidateError struct {
	Total    int
	Compiled int
	Skipped  int

	Diagnostics []Diagnostic
	Skips       []Skip
}

func (e *NoViableCandidateError) Error() string {
	if e.Total == 0 {
		return "no viable candidate: no candidates supplied"
	}
	if e.Compiled == 0 {
		return fmt.Sprintf("no viable candidate: none of %d candidates compiled", e.Total)
	}
	return fmt.Sprintf("no viable candidate: %d of %d candidates compiled but none changed a cell",
		e.Compiled, e.Total)
}

// Is lets errors.Is(err, ErrNoViableCandidate) match.
func (e *NoViableCandidateError) Is(target error) bool {
	return target == ErrNoViableCandidate
}

// NothingCompiled reports whether every candidate was skipped.
func (e *NoViableCandidateError) NothingCompiled() bool {
	return e.Compiled == 0
}
