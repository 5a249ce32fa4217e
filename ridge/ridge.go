package ridge

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Method selects the training kernel.
type Method uint8

// NormEqDense solves the normal equations over dense data.
const NormEqDense Method = 0

func (m Method) String() string {
	if m == NormEqDense {
		return "normEqDense"
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// ParseMethod parses a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	if strings.EqualFold(s, "normEqDense") {
		return NormEqDense, nil
	}
	return 0, fmt.Errorf("ridge: unknown method %q", s)
}

// Parameter configures training.
type Parameter struct {
	// RidgeParameters is 1×1 (shared) or 1×k (one per response). A zero
	// penalty gives ordinary least squares.
	RidgeParameters table.Table
	// InterceptFlag fits an unpenalized intercept in Beta column 0.
	InterceptFlag bool
}

// NewParameter returns a penalty of 1 shared by all responses and an intercept.
func NewParameter() Parameter {
	return Parameter{RidgeParameters: table.Scalar(1, table.Float), InterceptFlag: true}
}

// check validates the parameter; nResponses is negative when unknown.
func (p Parameter) check(s *status.Status, m Method, nResponses int) {
	if m != NormEqDense {
		s.Add(status.ErrIncorrectMethod, "method")
	}
	if !table.CheckInto(s, p.RidgeParameters, "ridgeParameters", table.Expect{Rows: 1}) {
		return
	}
	if c := p.RidgeParameters.Cols(); c != 1 && nResponses > 0 && c != nResponses {
		s.Addf(status.ErrIncorrectNumberOfColumns, "ridgeParameters", "expected 1 or %d, got %d", nResponses, c)
	}
	for _, v := range p.RidgeParameters.Row(0, nil) {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			s.Addf(status.ErrIncorrectParameter, "ridgeParameters", "invalid penalty %v", v)
			break
		}
	}
}

func (p Parameter) penalty(k int) float64 {
	row := p.RidgeParameters.Row(0, nil)
	if len(row) == 1 {
		return row[0]
	}
	return row[k]
}

// Input holds the explanatory and dependent variables.
type Input struct {
	Data table.Table
	// DependentVariables is n×k.
	DependentVariables table.Table
}

// Check validates the input.
func (in *Input) Check(par Parameter, m Method) error {
	s := status.New()
	nRows := 0
	if table.CheckInto(s, in.Data, "data", table.Expect{UnexpectedLayouts: table.LayoutCSR.Mask()}) {
		nRows = in.Data.Rows()
	}
	nResponses := -1
	if table.CheckInto(s, in.DependentVariables, "dependentVariables", table.Expect{Rows: nRows, UnexpectedLayouts: table.PackedLayouts}) {
		nResponses = in.DependentVariables.Cols()
	}
	par.check(s, m, nResponses)
	return s.Err()
}

// PartialResult holds the normal-equation sums. Column 0 of the augmented
// design is the constant 1.
type PartialResult struct {
	// XTX is (p+1)×(p+1).
	XTX *table.Dense
	// XTY is k×(p+1).
	XTY *table.Dense
	// NObservations is 1×1 int.
	NObservations *table.Dense
}

// Allocated reports whether every field is present.
func (r *PartialResult) Allocated() bool {
	return r != nil && r.XTX != nil && r.XTY != nil && r.NObservations != nil
}

// Allocate creates zeroed sums unless sums of the same shape exist.
func (r *PartialResult) Allocate(nFeatures, nResponses int, a *algorithm.Allocator) error {
	if r.Allocated() && r.XTX.Cols() == nFeatures+1 && r.XTY.Rows() == nResponses {
		return nil
	}
	var err error
	if r.XTX, err = a.Dense("xtx", nFeatures+1, nFeatures+1, table.Float); err != nil {
		return err
	}
	if r.XTY, err = a.Dense("xty", nResponses, nFeatures+1, table.Float); err != nil {
		return err
	}
	if r.NObservations, err = a.Dense("nObservations", 1, 1, table.Int); err != nil {
		return err
	}
	return nil
}

func (r *PartialResult) add(o *PartialResult) {
	for i, v := range o.XTX.Data() {
		r.XTX.Data()[i] += v
	}
	for i, v := range o.XTY.Data() {
		r.XTY.Data()[i] += v
	}
	r.NObservations.Put(0, 0, r.NObservations.Get(0, 0)+o.NObservations.Get(0, 0))
}

// Step1Local accumulates the normal equations of one partition.
type Step1Local struct {
	Method    Method
	Parameter Parameter
	Input     Input
	Allocator *algorithm.Allocator

	result *PartialResult
}

// NewStep1Local creates the local training step.
func NewStep1Local(m Method, par Parameter, data, y table.Table) *Step1Local {
	return &Step1Local{Method: m, Parameter: par, Input: Input{Data: data, DependentVariables: y}}
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
		Check: func() error { return s.Input.Check(s.Parameter, s.Method) },
		Allocate: func() error {
			return s.result.Allocate(s.Input.Data.Cols(), s.Input.DependentVariables.Cols(), s.Allocator)
		},
		Kernel: s.kernel,
	}.Run(ctx, s.ID())
}

func (s *Step1Local) kernel(context.Context) error {
	data, dep := s.Input.Data, s.Input.DependentVariables
	q := data.Cols() + 1
	xtx := s.result.XTX.Data()
	xty := s.result.XTY

	x := make([]float64, q)
	x[0] = 1
	var row, y []float64
	for i := range data.Rows() {
		row = data.Row(i, row)
		copy(x[1:], row)
		for a, va := range x {
			for b, vb := range x {
				xtx[a*q+b] += va * vb
			}
		}
		y = dep.Row(i, y)
		for k, vy := range y {
			dst := xty.RawRow(k)
			for a, va := range x {
				dst[a] += va * vy
			}
		}
	}
	n := s.result.NObservations
	n.Put(0, 0, n.Get(0, 0)+float64(data.Rows()))
	return nil
}
