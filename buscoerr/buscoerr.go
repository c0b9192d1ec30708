// Package buscoerr defines the fatal and non-fatal error kinds produced
// by the genome-completeness pipeline. Each kind carries the offending
// path or identifier so that callers can report it without re-deriving
// context from a bare error string.
package buscoerr

import (
	"errors"
	"fmt"
)

// Kind identifies the semantic category of a pipeline error, independent
// of its Go type.
type Kind int

const (
	// DatasetInvalid marks a missing or malformed cutoff or reference file.
	DatasetInvalid Kind = iota
	// PredictorAbsent marks a missing or unsupported gene predictor binary.
	PredictorAbsent
	// PredictorProducedNothing marks an empty predictor output.
	PredictorProducedNothing
	// HeaderMalformed marks an unparseable predictor header line.
	HeaderMalformed
	// DomainTableMalformed marks an unparseable profile-search output row.
	DomainTableMalformed
	// ExonFractionalFrame marks an exon whose nucleotide length isn't a
	// multiple of 3.
	ExonFractionalFrame
)

func (k Kind) String() string {
	switch k {
	case DatasetInvalid:
		return "dataset invalid"
	case PredictorAbsent:
		return "predictor absent"
	case PredictorProducedNothing:
		return "predictor produced nothing"
	case HeaderMalformed:
		return "header malformed"
	case DomainTableMalformed:
		return "domain table malformed"
	case ExonFractionalFrame:
		return "exon fractional frame"
	default:
		return "unknown"
	}
}

// Error is a pipeline error carrying its Kind and the path or id it
// occurred on.
type Error struct {
	Kind    Kind
	Subject string // offending file path or SCO/gene id
	Err     error  // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind.
func New(kind Kind, subject string, cause error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: cause}
}

// Is reports whether err is, or wraps, a pipeline error of the given
// kind. Callers can also call errors.As directly with a *buscoerr.Error
// variable's address as the target.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
