package pca

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/internal/kernel"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Step2MasterInput collects the step 1 partial results of every node.
type Step2MasterInput struct {
	PartialResults []*PartialResult
}

// Check validates the collection and returns the feature count.
func (in *Step2MasterInput) Check(par Parameter, m Method) (int, error) {
	s := status.New()
	if len(in.PartialResults) == 0 {
		par.check(s, m, -1)
		return -1, s.Add(status.ErrNullInput, "partialResults").Err()
	}
	p := -1
	for i, pr := range in.PartialResults {
		name := fmt.Sprintf("partialResults[%d]", i)
		if !pr.Allocated() {
			s.Add(status.ErrNullPartialResult, name)
			continue
		}
		if p < 0 {
			p = pr.Features()
		}
		table.CheckInto(s, pr.NObservations, name+".nObservations", table.Expect{Rows: 1, Cols: 1})
		table.CheckInto(s, pr.SumData, name+".sumData", table.Expect{Rows: 1, Cols: p})
		table.CheckInto(s, pr.CrossProduct, name+".crossProduct", table.Expect{Rows: p, Cols: p})
	}
	par.check(s, m, p)
	return p, s.Err()
}

// Result holds the leading principal components.
type Result struct {
	// Eigenvalues is 1×nComponents, descending.
	Eigenvalues *table.Dense
	// Eigenvectors is nComponents×p, one component per row.
	Eigenvectors *table.Dense
	// Means is 1×p.
	Means *table.Dense
	// Variances is 1×p (sample variances).
	Variances *table.Dense
}

// Step2Master merges partial results by summation and finalizes the
// correlation PCA. Compute may be called repeatedly as partial results
// arrive; every call adds to the merged statistics.
type Step2Master struct {
	Method    Method
	Parameter Parameter
	Input     Step2MasterInput
	Allocator *algorithm.Allocator

	merged *PartialResult
	result *Result
}

// NewStep2Master creates the merging master step.
func NewStep2Master(m Method, par Parameter, partials []*PartialResult) *Step2Master {
	return &Step2Master{Method: m, Parameter: par, Input: Step2MasterInput{PartialResults: partials}}
}

func (s *Step2Master) ID() algorithm.StepID { return algorithm.Step2Master }

// PartialResult returns the merged statistics, nil before the first Compute.
func (s *Step2Master) PartialResult() *PartialResult { return s.merged }

// SetPartialResult makes Compute and Finalize use r as merged statistics.
func (s *Step2Master) SetPartialResult(r *PartialResult) { s.merged = r }

// Result returns the finalized result, nil until Finalize succeeded.
func (s *Step2Master) Result() *Result { return s.result }

func (s *Step2Master) Compute(ctx context.Context) error {
	if s.merged == nil {
		s.merged = &PartialResult{}
	}
	p := -1
	return algorithm.Procedure{
		Check: func() error {
			var err error
			if p, err = s.Input.Check(s.Parameter, s.Method); err != nil {
				return err
			}
			if q := s.merged.Features(); q >= 0 && q != p {
				return status.New().Addf(status.ErrIncorrectNumberOfColumns, "partialResults",
					"merged %d features, got %d", q, p).Err()
			}
			return nil
		},
		Allocate: func() error { return s.merged.Allocate(p, s.Allocator) },
		Kernel: func(context.Context) error {
			for _, pr := range s.Input.PartialResults {
				s.merged.add(pr)
			}
			return nil
		},
	}.Run(ctx, s.ID())
}

// Finalize computes the correlation matrix and its eigen decomposition.
func (s *Step2Master) Finalize(ctx context.Context) error {
	return algorithm.RunFinalize(ctx, s.ID(), func(context.Context) error {
		r, err := finalize(s.merged, s.Parameter, s.Allocator)
		if err != nil {
			return err
		}
		s.result = r
		return nil
	})
}

func finalize(pr *PartialResult, par Parameter, a *algorithm.Allocator) (*Result, error) {
	st := status.New()
	if pr == nil {
		return nil, st.Add(status.ErrResultNotReady, "partialResult").Err()
	}
	st.Check(pr.NObservations != nil, status.ErrResultNotReady, "nObservations")
	st.Check(pr.SumData != nil, status.ErrResultNotReady, "sumData")
	st.Check(pr.CrossProduct != nil, status.ErrResultNotReady, "crossProduct")
	if !st.OK() {
		return nil, st.Err()
	}
	p := pr.Features()
	n := pr.NObservations.Get(0, 0)
	if n < 2 {
		return nil, st.Addf(status.ErrInconsistentPartialResults, "nObservations", "%v observations", n).Err()
	}
	par.check(st, CorrelationDense, p)
	if !st.OK() {
		return nil, st.Err()
	}
	k := par.components(p)

	res := &Result{}
	var err error
	if res.Means, err = a.Dense("means", 1, p, table.Float); err != nil {
		return nil, err
	}
	if res.Variances, err = a.Dense("variances", 1, p, table.Float); err != nil {
		return nil, err
	}
	if res.Eigenvalues, err = a.Dense("eigenvalues", 1, k, table.Float); err != nil {
		return nil, err
	}
	if res.Eigenvectors, err = a.Dense("eigenvectors", k, p, table.Float); err != nil {
		return nil, err
	}

	sum := pr.SumData.Data()
	cross := pr.CrossProduct.Data()
	mean := res.Means.Data()
	for j := range mean {
		mean[j] = sum[j] / n
	}
	cov := make([]float64, p*p)
	for i := range p {
		for j := range p {
			cov[i*p+j] = (cross[i*p+j] - n*mean[i]*mean[j]) / (n - 1)
		}
	}
	copy(res.Variances.Data(), diagonal(cov, p))

	corr := make([]float64, p*p)
	for i := range p {
		for j := range p {
			vi, vj := cov[i*p+i], cov[j*p+j]
			switch {
			case i == j:
				corr[i*p+j] = 1
			case vi > 0 && vj > 0:
				corr[i*p+j] = cov[i*p+j] / math.Sqrt(vi*vj)
			}
		}
	}

	values, vectors, err := kernel.SymmetricEigen(corr, p)
	if err != nil {
		return nil, status.New().Addf(status.ErrStepFailed, "correlation", "%v", err).Err()
	}
	copy(res.Eigenvalues.Data(), values[:k])
	copy(res.Eigenvectors.Data(), vectors[:k*p])
	if par.IsDeterministic {
		for c := range k {
			normalizeSign(res.Eigenvectors.RawRow(c))
		}
	}
	return res, nil
}

func diagonal(m []float64, p int) []float64 {
	d := make([]float64, p)
	for i := range d {
		d[i] = m[i*p+i]
	}
	return d
}

// normalizeSign flips v so that its largest-magnitude entry is positive.
func normalizeSign(v []float64) {
	best := 0
	for i, x := range v {
		if math.Abs(x) > math.Abs(v[best]) {
			best = i
		}
	}
	if v[best] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}
