package naivebayes

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Input holds the count data and the class labels.
type Input struct {
	Data table.Table
	// Labels is n×1 with values in [0, NClasses).
	Labels table.Table
}

// Check validates the input.
func (in *Input) Check(par Parameter, m Method) error {
	s := status.New()
	dataOK := table.CheckInto(s, in.Data, "data", table.Expect{UnexpectedLayouts: m.unexpectedLayouts()})
	nRows, nFeatures := 0, -1
	if dataOK {
		nRows, nFeatures = in.Data.Rows(), in.Data.Cols()
	}
	par.check(s, m, nFeatures)
	if table.CheckInto(s, in.Labels, "labels", table.Expect{Rows: nRows, Cols: 1, UnexpectedLayouts: table.PackedLayouts}) && par.NClasses > 0 {
		var row []float64
		for i := range in.Labels.Rows() {
			row = in.Labels.Row(i, row)
			if c := row[0]; c < 0 || c >= float64(par.NClasses) || c != math.Trunc(c) {
				s.Addf(status.ErrIncorrectParameter, "labels", "row %d has class %v outside [0, %d)", i, c, par.NClasses)
				break
			}
		}
	}
	return s.Err()
}

// PartialModel holds per-class counts and feature sums.
type PartialModel struct {
	// ClassSize is NClasses×1 int.
	ClassSize *table.Dense
	// ClassGroupSum is NClasses×p.
	ClassGroupSum *table.Dense
}

// Allocated reports whether every field is present.
func (r *PartialModel) Allocated() bool {
	return r != nil && r.ClassSize != nil && r.ClassGroupSum != nil
}

// Allocate creates zeroed tables. Tables of the right shape are kept so
// that later blocks accumulate.
func (r *PartialModel) Allocate(nClasses, nFeatures int, a *algorithm.Allocator) error {
	if r.Allocated() && r.ClassGroupSum.Rows() == nClasses && r.ClassGroupSum.Cols() == nFeatures {
		return nil
	}
	var err error
	if r.ClassSize, err = a.Dense("classSize", nClasses, 1, table.Int); err != nil {
		return err
	}
	if r.ClassGroupSum, err = a.Dense("classGroupSum", nClasses, nFeatures, table.Float); err != nil {
		return err
	}
	return nil
}

func (r *PartialModel) add(o *PartialModel) {
	for i, v := range o.ClassSize.Data() {
		r.ClassSize.Data()[i] += v
	}
	for i, v := range o.ClassGroupSum.Data() {
		r.ClassGroupSum.Data()[i] += v
	}
}

// Step1Local accumulates the class statistics of one partition.
type Step1Local struct {
	Method    Method
	Parameter Parameter
	Input     Input
	Allocator *algorithm.Allocator

	result *PartialModel
}

// NewStep1Local creates the local training step.
func NewStep1Local(m Method, par Parameter, data, labels table.Table) *Step1Local {
	return &Step1Local{Method: m, Parameter: par, Input: Input{Data: data, Labels: labels}}
}

func (s *Step1Local) ID() algorithm.StepID { return algorithm.Step1Local }

// PartialResult returns the partial model, nil before the first Compute.
func (s *Step1Local) PartialResult() *PartialModel { return s.result }

// SetPartialResult makes Compute accumulate into r.
func (s *Step1Local) SetPartialResult(r *PartialModel) { s.result = r }

func (s *Step1Local) Compute(ctx context.Context) error {
	if s.result == nil {
		s.result = &PartialModel{}
	}
	return algorithm.Procedure{
		Check: func() error { return s.Input.Check(s.Parameter, s.Method) },
		Allocate: func() error {
			return s.result.Allocate(s.Parameter.NClasses, s.Input.Data.Cols(), s.Allocator)
		},
		Kernel: s.kernel,
	}.Run(ctx, s.ID())
}

func (s *Step1Local) kernel(context.Context) error {
	data := s.Input.Data
	sizes := s.result.ClassSize.Data()
	sums := s.result.ClassGroupSum
	labels := table.Column(s.Input.Labels, 0)

	csr, sparse := data.(*table.CSR)
	var row []float64
	for i, l := range labels {
		c := int(l)
		sizes[c]++
		dst := sums.RawRow(c)
		if sparse {
			values, cols := csr.SparseRow(i)
			for k, j := range cols {
				dst[j] += values[k]
			}
			continue
		}
		row = data.Row(i, row)
		for j, v := range row {
			dst[j] += v
		}
	}
	return nil
}

// Step2MasterInput collects the partial models of every node.
type Step2MasterInput struct {
	PartialModels []*PartialModel
}

// Check validates the collection and returns the feature count.
func (in *Step2MasterInput) Check(par Parameter, m Method) (int, error) {
	s := status.New()
	if len(in.PartialModels) == 0 {
		par.check(s, m, -1)
		return -1, s.Add(status.ErrNullInput, "partialModels").Err()
	}
	p := -1
	for i, pm := range in.PartialModels {
		name := fmt.Sprintf("partialModels[%d]", i)
		if !pm.Allocated() {
			s.Add(status.ErrNullPartialResult, name)
			continue
		}
		if p < 0 {
			p = pm.ClassGroupSum.Cols()
		}
		table.CheckInto(s, pm.ClassSize, name+".classSize", table.Expect{Rows: par.NClasses, Cols: 1})
		table.CheckInto(s, pm.ClassGroupSum, name+".classGroupSum", table.Expect{Rows: par.NClasses, Cols: p})
	}
	par.check(s, m, p)
	return p, s.Err()
}
