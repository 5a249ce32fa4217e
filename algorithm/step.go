// Package algorithm holds the step coordination core shared by every
// distributed algorithm family.
//
// A distributed computation is a fixed sequence of numbered steps executed
// by two roles. Local steps run on every node over its own data partition;
// master steps merge what the local steps produced. Every step follows the
// same procedure: check the inputs and parameters, allocate the partial
// result (idempotently), then run the kernel that fills it. The Coordinator
// executes stages in protocol order and never starts a stage after an
// earlier one failed.
package algorithm

import (
	"context"
	"errors"
	"fmt"
)

// Role is the side of the protocol a step runs on.
type Role uint8

const (
	// Local steps run once per node on that node's data partition.
	Local Role = iota
	// Master steps merge the outputs of the local steps.
	Master
)

func (r Role) String() string {
	switch r {
	case Local:
		return "local"
	case Master:
		return "master"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Step is the protocol step number. Batch is the single-node mode.
type Step uint8

const (
	Batch Step = iota
	Step1
	Step2
	Step3
	Step4
	Step5
)

// StepID names one (step, role) combination.
type StepID struct {
	Step Step
	Role Role
}

// Canonical step identifiers.
var (
	BatchID     = StepID{Batch, Local}
	Step1Local  = StepID{Step1, Local}
	Step2Local  = StepID{Step2, Local}
	Step2Master = StepID{Step2, Master}
	Step3Master = StepID{Step3, Master}
	Step4Local  = StepID{Step4, Local}
	Step5Master = StepID{Step5, Master}
)

func (id StepID) String() string {
	if id.Step == Batch {
		return "batch"
	}
	return fmt.Sprintf("step%d-%s", uint8(id.Step), id.Role)
}

// ParseStepID is the inverse of StepID.String.
func ParseStepID(s string) (StepID, error) {
	if s == "batch" {
		return BatchID, nil
	}
	var (
		n    uint8
		role string
	)
	if _, err := fmt.Sscanf(s, "step%d-%s", &n, &role); err != nil || n < 1 || n > 5 {
		return StepID{}, fmt.Errorf("algorithm: invalid step id %q", s)
	}
	switch role {
	case "local":
		return StepID{Step(n), Local}, nil
	case "master":
		return StepID{Step(n), Master}, nil
	default:
		return StepID{}, fmt.Errorf("algorithm: invalid role in step id %q", s)
	}
}

// Stage is one runnable step instance: its inputs, parameters and partial
// result are bound, Compute runs check, allocate and kernel in that order.
type Stage interface {
	ID() StepID
	Compute(ctx context.Context) error
}

// Finalizer is implemented by the last master step of a computation. It
// turns the accumulated partial result into the final result.
type Finalizer interface {
	ID() StepID
	Finalize(ctx context.Context) error
}

// Phase is one part of a step procedure.
type Phase uint8

const (
	PhaseCheck Phase = iota
	PhaseAllocate
	PhaseKernel
	PhaseFinalize
)

func (p Phase) String() string {
	switch p {
	case PhaseCheck:
		return "check"
	case PhaseAllocate:
		return "allocate"
	case PhaseKernel:
		return "kernel"
	case PhaseFinalize:
		return "finalize"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// StepError reports the step and phase that failed.
type StepError struct {
	ID    StepID
	Phase Phase
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.ID, e.Phase, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// FailedStep returns the step that produced err, if any.
func FailedStep(err error) (StepID, Phase, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.ID, se.Phase, true
	}
	return StepID{}, 0, false
}

// Procedure is the canonical check, allocate, kernel sequence. Nil phases
// are skipped.
type Procedure struct {
	Check    func() error
	Allocate func() error
	Kernel   func(ctx context.Context) error
}

// Run executes the phases in order and stops at the first failure.
func (p Procedure) Run(ctx context.Context, id StepID) error {
	if p.Check != nil {
		if err := p.Check(); err != nil {
			return &StepError{ID: id, Phase: PhaseCheck, Err: err}
		}
	}
	if p.Allocate != nil {
		if err := p.Allocate(); err != nil {
			return &StepError{ID: id, Phase: PhaseAllocate, Err: err}
		}
	}
	if err := ctx.Err(); err != nil {
		return &StepError{ID: id, Phase: PhaseKernel, Err: err}
	}
	if p.Kernel != nil {
		if err := p.Kernel(ctx); err != nil {
			return &StepError{ID: id, Phase: PhaseKernel, Err: err}
		}
	}
	return nil
}

// RunFinalize wraps a finalize function the same way Run wraps the phases.
func RunFinalize(ctx context.Context, id StepID, finalize func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &StepError{ID: id, Phase: PhaseFinalize, Err: err}
	}
	if err := finalize(ctx); err != nil {
		return &StepError{ID: id, Phase: PhaseFinalize, Err: err}
	}
	return nil
}
