package stepwise

import (
	"errors"
	"fmt"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/blobstore"
	"github.com/hupe1980/stepwise/exchange"
	"github.com/hupe1980/stepwise/status"
)

var (
	// ErrInvalidInput is returned when inputs or parameters fail validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotReady is returned when a result is requested before the
	// partial results it needs exist.
	ErrNotReady = errors.New("result not ready")

	// ErrOutOfMemory is returned when a partial result does not fit the
	// memory limit.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrNotFound is returned when a blob or committed step is missing.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt is returned when an archive cannot be decoded.
	ErrCorrupt = errors.New("corrupt archive")

	// ErrConflict is returned when a step of the job was already committed,
	// e.g. when a job name is reused with a persistent commit log.
	ErrConflict = errors.New("conflict")
)

// ErrStep reports the protocol step that failed.
//
// The original underlying error can be accessed via errors.Unwrap; the
// façade sentinel it was classified as matches with errors.Is.
type ErrStep struct {
	Step  algorithm.StepID
	Phase algorithm.Phase
	kind  error
	cause error
}

func (e *ErrStep) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Step, e.Phase, e.cause)
}

func (e *ErrStep) Unwrap() []error {
	if e.kind == nil {
		return []error{e.cause}
	}
	return []error{e.kind, e.cause}
}

// Details returns the error descriptors collected by the failing step.
func (e *ErrStep) Details() []*status.Detail {
	return status.From(e.cause).Details()
}

func classify(err error) error {
	switch {
	case errors.Is(err, status.ErrMemoryAllocationFailed):
		return ErrOutOfMemory
	case errors.Is(err, status.ErrResultNotReady),
		errors.Is(err, status.ErrNullPartialResult):
		return ErrNotReady
	case errors.Is(err, status.ErrIncorrectNumberOfColumns),
		errors.Is(err, status.ErrIncorrectNumberOfRows),
		errors.Is(err, status.ErrNullInputNumericTable),
		errors.Is(err, status.ErrEmptyInputNumericTable),
		errors.Is(err, status.ErrIncorrectTypeOfInputNumericTable),
		errors.Is(err, status.ErrIncorrectOptionalInput),
		errors.Is(err, status.ErrMissingOptionalInput),
		errors.Is(err, status.ErrIncorrectParameter),
		errors.Is(err, status.ErrIncorrectMethod),
		errors.Is(err, status.ErrNullInput):
		return ErrInvalidInput
	case errors.Is(err, blobstore.ErrNotFound),
		errors.Is(err, exchange.ErrNotCommitted):
		return ErrNotFound
	case errors.Is(err, blobstore.ErrAlreadyCommitted):
		return ErrConflict
	case errors.Is(err, archive.ErrCorrupt),
		errors.Is(err, archive.ErrChecksum),
		errors.Is(err, archive.ErrTagMismatch),
		errors.Is(err, archive.ErrUnknownTag):
		return ErrCorrupt
	}
	return nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	kind := classify(err)
	if id, phase, ok := algorithm.FailedStep(err); ok {
		var se *algorithm.StepError
		errors.As(err, &se)
		return &ErrStep{Step: id, Phase: phase, kind: kind, cause: se.Err}
	}
	if kind != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return err
}
