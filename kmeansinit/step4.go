package kmeansinit

import (
	"context"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/internal/kernel"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Step4Input holds the data, the local data from step 2 and the residuals
// drawn for this node by step 3.
type Step4Input struct {
	Data      table.Table
	LocalData *LocalData
	// InputOfStep4FromStep3 is the 1×m table of residuals.
	InputOfStep4FromStep3 table.Table
}

// Check validates the input.
func (in *Step4Input) Check(par Parameter, m Method) error {
	s := status.New()
	par.check(s, m, -1)
	if !m.IsPlusPlus() {
		s.Addf(status.ErrIncorrectMethod, "method", "%s has no step4", m)
	}
	dataOK := table.CheckInto(s, in.Data, "data", table.Expect{UnexpectedLayouts: m.unexpectedLayouts()})
	table.CheckInto(s, in.InputOfStep4FromStep3, "inputOfStep4FromStep3", table.Expect{Rows: 1})
	if dataOK {
		in.LocalData.check(s, m, par, in.Data.Rows())
	}
	return s.Err()
}

// Step4PartialResult holds the rows selected on this node.
type Step4PartialResult struct {
	// OutputOfStep4 has one row per residual and one column per feature.
	OutputOfStep4 *table.Dense
}

// Allocate sizes the output from two inputs: rows from the number of
// residuals, columns from the data.
func (r *Step4PartialResult) Allocate(in *Step4Input, _ Parameter, _ Method, a *algorithm.Allocator) error {
	out, err := a.Dense("outputOfStep4", in.InputOfStep4FromStep3.Cols(), in.Data.Cols(), table.Float)
	if err != nil {
		return err
	}
	r.OutputOfStep4 = out
	return nil
}

// Step4Local resolves residuals into rows by walking the cumulative
// closest distances.
type Step4Local struct {
	Method    Method
	Parameter Parameter
	Input     Step4Input
	Allocator *algorithm.Allocator

	result *Step4PartialResult
}

// NewStep4Local creates the fourth local step.
func NewStep4Local(m Method, par Parameter, data table.Table, local *LocalData, residuals table.Table) *Step4Local {
	return &Step4Local{
		Method:    m,
		Parameter: par,
		Input:     Step4Input{Data: data, LocalData: local, InputOfStep4FromStep3: residuals},
	}
}

func (s *Step4Local) ID() algorithm.StepID { return algorithm.Step4Local }

// PartialResult returns the partial result, nil before the first Compute.
func (s *Step4Local) PartialResult() *Step4PartialResult { return s.result }

func (s *Step4Local) Compute(ctx context.Context) error {
	if s.result == nil {
		s.result = &Step4PartialResult{}
	}
	return algorithm.Procedure{
		Check:    func() error { return s.Input.Check(s.Parameter, s.Method) },
		Allocate: func() error { return s.result.Allocate(&s.Input, s.Parameter, s.Method, s.Allocator) },
		Kernel:   s.kernel,
	}.Run(ctx, s.ID())
}

func (s *Step4Local) kernel(context.Context) error {
	dist := s.Input.LocalData.ClosestClusterDistance.Data()
	residuals := s.Input.InputOfStep4FromStep3.Row(0, nil)
	out := s.result.OutputOfStep4
	for j, r := range residuals {
		i := kernel.CumulativeIndex(r, dist)
		if i < 0 {
			return status.New().Addf(status.ErrInconsistentPartialResults, "closestClusterDistance",
				"no row with positive distance for residual %v", r)
		}
		s.Input.Data.Row(i, out.RawRow(j))
	}
	return nil
}
