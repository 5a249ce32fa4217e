package ridge

import (
	"context"
	"fmt"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/internal/kernel"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Archive tags of the ridge regression types.
const (
	TagPartialResult archive.Tag = 0x52470011
	TagModel         archive.Tag = 0x52470001
)

// Register adds every ridge regression type to reg.
func Register(reg *archive.Registry) error {
	return reg.RegisterAll(map[archive.Tag]archive.Factory{
		TagPartialResult: func() archive.Serializable { return &PartialResult{} },
		TagModel:         func() archive.Serializable { return &Model{} },
	})
}

func (r *PartialResult) ArchiveTag() archive.Tag { return TagPartialResult }

func (r *PartialResult) MarshalArchive(w *archive.Writer) {
	w.Table(r.XTX)
	w.Table(r.XTY)
	w.Table(r.NObservations)
}

func (r *PartialResult) UnmarshalArchive(rd *archive.Reader) {
	r.XTX = rd.Dense()
	r.XTY = rd.Dense()
	r.NObservations = rd.Dense()
}

// Model holds the regression coefficients.
type Model struct {
	// Beta is k×(p+1); column 0 is the intercept (0 without InterceptFlag).
	Beta          *table.Dense
	InterceptFlag bool
}

func (m *Model) ArchiveTag() archive.Tag { return TagModel }

func (m *Model) MarshalArchive(w *archive.Writer) {
	w.Table(m.Beta)
	w.Bool(m.InterceptFlag)
}

func (m *Model) UnmarshalArchive(rd *archive.Reader) {
	m.Beta = rd.Dense()
	m.InterceptFlag = rd.Bool()
}

// Step2MasterInput collects the partial results of every node.
type Step2MasterInput struct {
	PartialResults []*PartialResult
}

// Check validates the collection and returns (p, k).
func (in *Step2MasterInput) Check(par Parameter, m Method) (int, int, error) {
	s := status.New()
	if len(in.PartialResults) == 0 {
		par.check(s, m, -1)
		return -1, -1, s.Add(status.ErrNullInput, "partialResults").Err()
	}
	q, k := -1, -1
	for i, pr := range in.PartialResults {
		name := fmt.Sprintf("partialResults[%d]", i)
		if !pr.Allocated() {
			s.Add(status.ErrNullPartialResult, name)
			continue
		}
		if q < 0 {
			q, k = pr.XTX.Cols(), pr.XTY.Rows()
		}
		table.CheckInto(s, pr.XTX, name+".xtx", table.Expect{Rows: q, Cols: q})
		table.CheckInto(s, pr.XTY, name+".xty", table.Expect{Rows: k, Cols: q})
		table.CheckInto(s, pr.NObservations, name+".nObservations", table.Expect{Rows: 1, Cols: 1})
	}
	par.check(s, m, k)
	return q - 1, k, s.Err()
}

// Step2Master merges the normal equations and solves them.
type Step2Master struct {
	Method    Method
	Parameter Parameter
	Input     Step2MasterInput
	Allocator *algorithm.Allocator

	merged *PartialResult
	model  *Model
}

// NewStep2Master creates the merging master step.
func NewStep2Master(m Method, par Parameter, partials []*PartialResult) *Step2Master {
	return &Step2Master{Method: m, Parameter: par, Input: Step2MasterInput{PartialResults: partials}}
}

func (s *Step2Master) ID() algorithm.StepID { return algorithm.Step2Master }

// PartialResult returns the merged sums, nil before the first Compute.
func (s *Step2Master) PartialResult() *PartialResult { return s.merged }

// SetPartialResult makes Compute and Finalize use r as merged sums.
func (s *Step2Master) SetPartialResult(r *PartialResult) { s.merged = r }

// Model returns the trained model, nil until Finalize succeeded.
func (s *Step2Master) Model() *Model { return s.model }

func (s *Step2Master) Compute(ctx context.Context) error {
	if s.merged == nil {
		s.merged = &PartialResult{}
	}
	p, k := -1, -1
	return algorithm.Procedure{
		Check: func() error {
			var err error
			p, k, err = s.Input.Check(s.Parameter, s.Method)
			return err
		},
		Allocate: func() error { return s.merged.Allocate(p, k, s.Allocator) },
		Kernel: func(context.Context) error {
			for _, pr := range s.Input.PartialResults {
				s.merged.add(pr)
			}
			return nil
		},
	}.Run(ctx, s.ID())
}

// Finalize solves (XᵀX + λI)β = Xᵀy for every response with a Cholesky
// factorization. The intercept is not penalized.
func (s *Step2Master) Finalize(ctx context.Context) error {
	return algorithm.RunFinalize(ctx, s.ID(), func(context.Context) error {
		st := status.New()
		pr := s.merged
		if pr == nil {
			return st.Add(status.ErrResultNotReady, "partialResult").Err()
		}
		st.Check(pr.XTX != nil, status.ErrResultNotReady, "xtx")
		st.Check(pr.XTY != nil, status.ErrResultNotReady, "xty")
		st.Check(pr.NObservations != nil, status.ErrResultNotReady, "nObservations")
		if !st.OK() {
			return st.Err()
		}
		q, k := pr.XTX.Cols(), pr.XTY.Rows()
		s.Parameter.check(st, s.Method, k)
		if !st.OK() {
			return st.Err()
		}

		beta, err := s.Allocator.Dense("beta", k, q, table.Float)
		if err != nil {
			return err
		}
		// Without intercept the constant column is dropped from the system.
		first := 1
		if s.Parameter.InterceptFlag {
			first = 0
		}
		n := q - first
		a := make([]float64, n*n)
		for r := range k {
			for i := range n {
				for j := range n {
					a[i*n+j] = pr.XTX.Get(i+first, j+first)
				}
				if i+first > 0 {
					a[i*n+i] += s.Parameter.penalty(r)
				}
			}
			if err := kernel.Cholesky(a, n); err != nil {
				return st.Addf(status.ErrStepFailed, "xtx", "response %d: %v", r, err).Err()
			}
			b := make([]float64, n)
			copy(b, pr.XTY.RawRow(r)[first:])
			kernel.CholeskySolve(a, n, b)
			copy(beta.RawRow(r)[first:], b)
		}
		s.model = &Model{Beta: beta, InterceptFlag: s.Parameter.InterceptFlag}
		return nil
	})
}

// Predict returns the n×k responses of the rows of data.
func Predict(m *Model, data table.Table) (*table.Dense, error) {
	s := status.New()
	if m == nil || m.Beta == nil {
		return nil, s.Add(status.ErrNullInput, "model").Err()
	}
	if !table.CheckInto(s, data, "data", table.Expect{Cols: m.Beta.Cols() - 1, UnexpectedLayouts: table.LayoutCSR.Mask()}) {
		return nil, s.Err()
	}
	k := m.Beta.Rows()
	out := table.MustNew(data.Rows(), k, table.Float)
	var row []float64
	for i := range data.Rows() {
		row = data.Row(i, row)
		dst := out.RawRow(i)
		for r := range k {
			b := m.Beta.RawRow(r)
			v := b[0]
			for j, x := range row {
				v += b[j+1] * x
			}
			dst[r] = v
		}
	}
	return out, nil
}
