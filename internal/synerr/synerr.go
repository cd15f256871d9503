// Package synerr defines the structured error kinds used throughout the
// synthesis engine and its collaborators.
package synerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a synthesis error, used by callers (chiefly
// the CLI) to decide on an exit code or recovery strategy without string
// matching on Error().
type Kind int

const (
	// Unknown is the zero Kind; errors that did not originate in this package
	// report Unknown when inspected with Is.
	Unknown Kind = iota

	// Configuration covers malformed CLI invocations, missing files, and
	// plant/spec inconsistencies.
	Configuration

	// InvalidAutomaton covers a transition that references an unknown
	// location or clock.
	InvalidAutomaton

	// WrongTransitionType covers two ATA symbol steps, or two ATA time
	// steps, attempted back to back with no interposed step of the other
	// kind.
	WrongTransitionType

	// NegativeTimeDelta covers an attempted time step of Δ < 0.
	NegativeTimeDelta

	// InconsistentTree covers a structural invariant broken while
	// traversing or labeling the search DAG (e.g. a parent/child edge that
	// does not agree in both directions).
	InconsistentTree

	// UnsatisfiableSpecification is the orderly outcome of a completed
	// search whose root resolved to BOTTOM: no controller exists.
	UnsatisfiableSpecification

	// Cancelled covers a run stopped by timeout or explicit cancellation
	// before the root resolved.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "ConfigurationError"
	case InvalidAutomaton:
		return "InvalidAutomatonError"
	case WrongTransitionType:
		return "WrongTransitionTypeError"
	case NegativeTimeDelta:
		return "NegativeTimeDeltaError"
	case InconsistentTree:
		return "InconsistentTreeError"
	case UnsatisfiableSpecification:
		return "UnsatisfiableSpecification"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is a synthesis error tagged with a Kind: a technical message for
// logs and stderr, plus the Kind for programmatic dispatch.
type Error struct {
	kind Kind
	msg  string
	wrap error
}

func (e *Error) Error() string {
	if e.kind == Unknown {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Unwrap gives the error that Error wraps, if it wraps one.
func (e *Error) Unwrap() error {
	return e.wrap
}

// Kind returns the error's Kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// New returns a new Error of the given Kind with the given technical message.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, a ...interface{}) error {
	return New(kind, fmt.Sprintf(format, a...))
}

// Wrap returns a new Error of the given Kind that wraps cause.
func Wrap(cause error, kind Kind, msg string) error {
	if msg == "" {
		msg = cause.Error()
	}
	return &Error{kind: kind, msg: msg, wrap: cause}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(cause error, kind Kind, format string, a ...interface{}) error {
	return Wrap(cause, kind, fmt.Sprintf(format, a...))
}

// Is reports whether err is, or wraps, a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	return se.kind == kind
}

// KindOf returns the Kind of err if it is, or wraps, a *Error, and Unknown
// otherwise.
func KindOf(err error) Kind {
	var se *Error
	if !errors.As(err, &se) {
		return Unknown
	}
	return se.kind
}
