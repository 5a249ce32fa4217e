// Package status collects error descriptors produced by check, allocate,
// compute and finalize operations.
//
// Every public operation that can fail returns an error. When the failure
// stems from the inputs, parameters or partial state of a computation the
// error is a *Status holding one Detail per problem found, so callers can
// inspect all of them rather than only the first:
//
//	if err := in.Check(par, method); err != nil {
//	    for _, d := range status.From(err).Details() {
//	        fmt.Println(d.Argument, d.Kind)
//	    }
//	}
//
// Each Detail unwraps to its kind, so errors.Is works on the aggregate:
//
//	errors.Is(err, status.ErrIncorrectNumberOfColumns)
package status

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncorrectNumberOfColumns is reported when a table has an unexpected column count.
	ErrIncorrectNumberOfColumns = errors.New("incorrect number of columns")

	// ErrIncorrectNumberOfRows is reported when a table has an unexpected row count.
	ErrIncorrectNumberOfRows = errors.New("incorrect number of rows")

	// ErrNullInputNumericTable is reported when a required table is nil.
	ErrNullInputNumericTable = errors.New("input numeric table is nil")

	// ErrEmptyInputNumericTable is reported when a required table has no rows.
	ErrEmptyInputNumericTable = errors.New("input numeric table is empty")

	// ErrIncorrectTypeOfInputNumericTable is reported when a table has a layout
	// that is not allowed for its role.
	ErrIncorrectTypeOfInputNumericTable = errors.New("incorrect layout of input numeric table")

	// ErrIncorrectOptionalInput is reported when an optional input is present
	// although the parameters do not request it.
	ErrIncorrectOptionalInput = errors.New("unexpected optional input")

	// ErrMissingOptionalInput is reported when the parameters request an
	// optional input that was not provided.
	ErrMissingOptionalInput = errors.New("requested optional input is missing")

	// ErrIncorrectParameter is reported when a parameter value is out of range.
	ErrIncorrectParameter = errors.New("incorrect parameter")

	// ErrIncorrectMethod is reported for an unknown computation method.
	ErrIncorrectMethod = errors.New("incorrect computation method")

	// ErrMemoryAllocationFailed is reported when a partial result or result
	// could not be allocated.
	ErrMemoryAllocationFailed = errors.New("memory allocation failed")

	// ErrNullInput is reported when the input object itself is missing.
	ErrNullInput = errors.New("input is nil")

	// ErrNullPartialResult is reported when a partial result or one of its
	// required fields is nil.
	ErrNullPartialResult = errors.New("partial result is nil")

	// ErrResultNotReady is reported when finalization is requested before
	// every required partial field has been populated.
	ErrResultNotReady = errors.New("result is not ready")

	// ErrInconsistentPartialResults is reported when partial results that are
	// to be merged disagree in shape.
	ErrInconsistentPartialResults = errors.New("inconsistent partial results")

	// ErrStepFailed is reported when a protocol step did not complete.
	ErrStepFailed = errors.New("protocol step failed")

	// ErrUnsupportedStep is reported when a step is requested that the
	// selected method does not have.
	ErrUnsupportedStep = errors.New("step is not supported by the method")
)

// Detail describes a single problem.
type Detail struct {
	// Kind is one of the sentinel errors of this package (or a foreign cause).
	Kind error
	// Argument names the offending input, parameter or partial result field.
	Argument string
	// Message carries optional free-form context.
	Message string
}

func (d *Detail) Error() string {
	var b strings.Builder
	if d.Argument != "" {
		b.WriteString(d.Argument)
		b.WriteString(": ")
	}
	if d.Kind != nil {
		b.WriteString(d.Kind.Error())
	} else {
		b.WriteString("unknown error")
	}
	if d.Message != "" {
		b.WriteString(" (")
		b.WriteString(d.Message)
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the kind of the detail.
func (d *Detail) Unwrap() error { return d.Kind }

// Status accumulates details. The zero value is an OK status.
type Status struct {
	details []*Detail
}

// New returns an empty status.
func New() *Status { return &Status{} }

// Add records a detail and returns the status for chaining.
func (s *Status) Add(kind error, argument string) *Status {
	s.details = append(s.details, &Detail{Kind: kind, Argument: argument})
	return s
}

// Addf records a detail with a formatted message.
func (s *Status) Addf(kind error, argument, format string, args ...any) *Status {
	s.details = append(s.details, &Detail{Kind: kind, Argument: argument, Message: fmt.Sprintf(format, args...)})
	return s
}

// Merge folds err into the status. Statuses and details are flattened;
// any other error becomes a detail without an argument name.
func (s *Status) Merge(err error) *Status {
	if err == nil {
		return s
	}
	var other *Status
	if errors.As(err, &other) {
		if other != s {
			s.details = append(s.details, other.details...)
		}
		return s
	}
	var d *Detail
	if errors.As(err, &d) {
		s.details = append(s.details, d)
		return s
	}
	s.details = append(s.details, &Detail{Kind: err})
	return s
}

// OK reports whether no detail was recorded.
func (s *Status) OK() bool { return s == nil || len(s.details) == 0 }

// Details returns the recorded details in the order they were added.
func (s *Status) Details() []*Detail {
	if s == nil {
		return nil
	}
	out := make([]*Detail, len(s.details))
	copy(out, s.details)
	return out
}

// Len returns the number of details.
func (s *Status) Len() int {
	if s == nil {
		return 0
	}
	return len(s.details)
}

// Err returns nil for an OK status and the status itself otherwise.
func (s *Status) Err() error {
	if s.OK() {
		return nil
	}
	return s
}

func (s *Status) Error() string {
	if s.OK() {
		return "ok"
	}
	if len(s.details) == 1 {
		return s.details[0].Error()
	}
	parts := make([]string, len(s.details))
	for i, d := range s.details {
		parts[i] = d.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(s.details), strings.Join(parts, "; "))
}

// Unwrap exposes every detail to errors.Is and errors.As.
func (s *Status) Unwrap() []error {
	out := make([]error, len(s.details))
	for i, d := range s.details {
		out[i] = d
	}
	return out
}

// Has reports whether a detail of the given kind was recorded.
func (s *Status) Has(kind error) bool {
	if s == nil {
		return false
	}
	for _, d := range s.details {
		if errors.Is(d, kind) {
			return true
		}
	}
	return false
}

// From returns the status carried by err. A nil err yields an OK status and
// errors that carry no status are wrapped into a single-detail status.
func From(err error) *Status {
	if err == nil {
		return New()
	}
	var s *Status
	if errors.As(err, &s) {
		return s
	}
	return New().Merge(err)
}

// Check records kind for argument when cond is false and reports cond.
func (s *Status) Check(cond bool, kind error, argument string) bool {
	if !cond {
		s.Add(kind, argument)
	}
	return cond
}
