package airr

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies the per-sample failures of the summarization pipeline.
// Every Kind is recoverable at the cohort level: the failing sample is
// reported and the remaining samples proceed.
type Kind int

const (
	// Other is any failure outside the taxonomy, e.g. a transient read fault.
	Other Kind = iota
	// SampleNotFound means the record source for a sample could not be located.
	SampleNotFound
	// MalformedInput means the source violated the expected schema: a required
	// column is missing, a cell does not parse, or a gene call is malformed.
	MalformedInput
	// EmptyRepertoire means a frequency table had no denominator after filtering.
	EmptyRepertoire
	// NoClones means no record carried a junction, so diversity is undefined.
	NoClones
	// InvalidCount means a clone size was zero or negative. This indicates
	// upstream corruption.
	InvalidCount
)

var kindNames = [...]string{
	Other:           "other",
	SampleNotFound:  "sample not found",
	MalformedInput:  "malformed input",
	EmptyRepertoire: "empty repertoire",
	NoClones:        "no clones",
	InvalidCount:    "invalid count",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is the error type returned by the pipeline stages. Sample is empty
// when the stage does not know which sample it is processing; the cohort
// composer fills it in.
type Error struct {
	Kind   Kind
	Sample string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Sample != "" {
		msg = e.Sample + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// E creates an *Error of the given kind wrapping err.
func E(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// WithSample returns err annotated with the sample ID. If err is already an
// *Error the returned value is a copy, so err itself is never modified.
func WithSample(err error, sample string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		c := *e
		c.Sample = sample
		return &c
	}
	return &Error{Kind: Other, Sample: sample, Err: err}
}
