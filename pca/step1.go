package pca

import (
	"context"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Step1Input is the local partition.
type Step1Input struct {
	Data table.Table
}

// Check validates the input.
func (in *Step1Input) Check(par Parameter, m Method) error {
	s := status.New()
	if table.CheckInto(s, in.Data, "data", table.Expect{UnexpectedLayouts: m.unexpectedLayouts()}) {
		par.check(s, m, in.Data.Cols())
	} else {
		par.check(s, m, -1)
	}
	return s.Err()
}

// PartialResult holds the sufficient statistics of the rows seen so far.
// Partial results merge by summation in any order.
type PartialResult struct {
	// NObservations is 1×1 int.
	NObservations *table.Dense
	// SumData is 1×p.
	SumData *table.Dense
	// CrossProduct is p×p: Σ xᵀx over the raw rows.
	CrossProduct *table.Dense
}

// Allocated reports whether every field is present.
func (r *PartialResult) Allocated() bool {
	return r != nil && r.NObservations != nil && r.SumData != nil && r.CrossProduct != nil
}

// Features returns p, or -1 when the partial result is not allocated.
func (r *PartialResult) Features() int {
	if !r.Allocated() {
		return -1
	}
	return r.SumData.Cols()
}

// Allocate creates zeroed statistics for p features. A partial result that
// already holds statistics for p features is kept so that Compute
// accumulates further blocks into it.
func (r *PartialResult) Allocate(p int, a *algorithm.Allocator) error {
	if r.Features() == p {
		return nil
	}
	var err error
	if r.NObservations, err = a.Dense("nObservations", 1, 1, table.Int); err != nil {
		return err
	}
	if r.SumData, err = a.Dense("sumData", 1, p, table.Float); err != nil {
		return err
	}
	if r.CrossProduct, err = a.Dense("crossProduct", p, p, table.Float); err != nil {
		return err
	}
	return nil
}

func (r *PartialResult) add(o *PartialResult) {
	r.NObservations.Put(0, 0, r.NObservations.Get(0, 0)+o.NObservations.Get(0, 0))
	for i, v := range o.SumData.Data() {
		r.SumData.Data()[i] += v
	}
	for i, v := range o.CrossProduct.Data() {
		r.CrossProduct.Data()[i] += v
	}
}

// Step1Local accumulates the statistics of one partition.
type Step1Local struct {
	Method    Method
	Parameter Parameter
	Input     Step1Input
	Allocator *algorithm.Allocator

	result *PartialResult
}

// NewStep1Local creates the local step over data.
func NewStep1Local(m Method, par Parameter, data table.Table) *Step1Local {
	return &Step1Local{Method: m, Parameter: par, Input: Step1Input{Data: data}}
}

func (s *Step1Local) ID() algorithm.StepID { return algorithm.Step1Local }

// PartialResult returns the partial result, nil before the first Compute.
func (s *Step1Local) PartialResult() *PartialResult { return s.result }

// SetPartialResult makes Compute accumulate into r.
func (s *Step1Local) SetPartialResult(r *PartialResult) { s.result = r }

func (s *Step1Local) Compute(ctx context.Context) error {
	if s.result == nil {
		s.result = &PartialResult{}
	}
	return algorithm.Procedure{
		Check: func() error {
			if err := s.Input.Check(s.Parameter, s.Method); err != nil {
				return err
			}
			if p := s.result.Features(); p >= 0 && p != s.Input.Data.Cols() {
				return status.New().Addf(status.ErrIncorrectNumberOfColumns, "data",
					"expected %d, got %d", p, s.Input.Data.Cols()).Err()
			}
			return nil
		},
		Allocate: func() error { return s.result.Allocate(s.Input.Data.Cols(), s.Allocator) },
		Kernel:   s.kernel,
	}.Run(ctx, s.ID())
}

func (s *Step1Local) kernel(ctx context.Context) error {
	data := s.Input.Data
	p := data.Cols()
	sum := s.result.SumData.Data()
	cross := s.result.CrossProduct.Data()

	csr, sparse := data.(*table.CSR)
	var row []float64
	for i := range data.Rows() {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if sparse {
			values, cols := csr.SparseRow(i)
			for a, ca := range cols {
				sum[ca] += values[a]
				for b, cb := range cols {
					cross[ca*p+cb] += values[a] * values[b]
				}
			}
			continue
		}
		row = data.Row(i, row)
		for a, va := range row {
			sum[a] += va
			if va == 0 {
				continue
			}
			for b, vb := range row {
				cross[a*p+b] += va * vb
			}
		}
	}
	n := s.result.NObservations
	n.Put(0, 0, n.Get(0, 0)+float64(data.Rows()))
	return nil
}
