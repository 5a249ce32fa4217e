package kmeansinit

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/internal/kernel"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Step5Input holds every candidate found (step 1 and all step 4 rounds, in
// protocol order) and the candidate ratings of every node.
type Step5Input struct {
	InputCentroids        []table.Table
	InputOfStep5FromStep2 []table.Table
}

// Check validates the input.
func (in *Step5Input) Check(par Parameter, m Method) error {
	s := status.New()
	par.check(s, m, -1)
	if !m.IsParallelPlus() {
		s.Addf(status.ErrIncorrectMethod, "method", "%s has no step5", m)
	}
	if len(in.InputCentroids) == 0 {
		s.Add(status.ErrNullInput, "inputCentroids")
	}
	if len(in.InputOfStep5FromStep2) == 0 {
		s.Add(status.ErrNullInput, "inputOfStep5FromStep2")
	}
	if !s.OK() {
		return s.Err()
	}

	nFeatures, total := -1, 0
	for i, t := range in.InputCentroids {
		name := fmt.Sprintf("inputCentroids[%d]", i)
		if !table.CheckInto(s, t, name, table.Expect{AllowEmpty: true}) {
			continue
		}
		if nFeatures < 0 {
			nFeatures = t.Cols()
		} else if t.Cols() != nFeatures {
			s.Addf(status.ErrIncorrectNumberOfColumns, name, "expected %d, got %d", nFeatures, t.Cols())
		}
		total += t.Rows()
	}
	if total > par.MaxCandidates() {
		s.Addf(status.ErrIncorrectNumberOfRows, "inputCentroids", "%d candidates exceed capacity %d", total, par.MaxCandidates())
	}
	for i, t := range in.InputOfStep5FromStep2 {
		table.CheckInto(s, t, fmt.Sprintf("inputOfStep5FromStep2[%d]", i), table.Expect{Rows: par.MaxCandidates(), Cols: 1})
	}
	return s.Err()
}

// Step5PartialResult holds the candidate set and its weights.
type Step5PartialResult struct {
	// Candidates is MaxCandidates×nFeatures; only the first NCandidates rows are set.
	Candidates *table.Dense
	// Weights is MaxCandidates×1: rows closest to each candidate over all nodes.
	Weights     *table.Dense
	NCandidates int
}

// Allocate sizes the candidate tables by MaxCandidates and the feature
// count of the first candidate table.
func (r *Step5PartialResult) Allocate(in *Step5Input, par Parameter, _ Method, a *algorithm.Allocator) error {
	s := status.New()
	if !par.checkMaxCandidates(s) {
		return s.Err()
	}
	if len(in.InputCentroids) == 0 || table.IsNil(in.InputCentroids[0]) {
		return s.Add(status.ErrNullInput, "inputCentroids").Err()
	}
	nFeatures := in.InputCentroids[0].Cols()

	candidates, err := a.Dense("candidates", par.MaxCandidates(), nFeatures, table.Float)
	if err != nil {
		return err
	}
	weights, err := a.Dense("weights", par.MaxCandidates(), 1, table.Float)
	if err != nil {
		return err
	}
	r.Candidates, r.Weights, r.NCandidates = candidates, weights, 0
	return nil
}

// Step5Master merges the candidates and reduces them to NClusters
// centroids with weighted k-means++.
type Step5Master struct {
	Method    Method
	Parameter Parameter
	Input     Step5Input
	Allocator *algorithm.Allocator

	partial *Step5PartialResult
	result  *Result
}

// NewStep5Master creates the final master step.
func NewStep5Master(m Method, par Parameter, centroids, ratings []table.Table) *Step5Master {
	return &Step5Master{
		Method:    m,
		Parameter: par,
		Input:     Step5Input{InputCentroids: centroids, InputOfStep5FromStep2: ratings},
	}
}

func (s *Step5Master) ID() algorithm.StepID { return algorithm.Step5Master }

// PartialResult returns the partial result, nil before the first Compute.
func (s *Step5Master) PartialResult() *Step5PartialResult { return s.partial }

// SetPartialResult makes Finalize consume r, e.g. after restoring it from
// an archive.
func (s *Step5Master) SetPartialResult(r *Step5PartialResult) { s.partial = r }

// Result returns the finalized result, nil until Finalize succeeded.
func (s *Step5Master) Result() *Result { return s.result }

func (s *Step5Master) Compute(ctx context.Context) error {
	if s.partial == nil {
		s.partial = &Step5PartialResult{}
	}
	return algorithm.Procedure{
		Check:    func() error { return s.Input.Check(s.Parameter, s.Method) },
		Allocate: func() error { return s.partial.Allocate(&s.Input, s.Parameter, s.Method, s.Allocator) },
		Kernel:   s.kernel,
	}.Run(ctx, s.ID())
}

func (s *Step5Master) kernel(context.Context) error {
	p := s.partial
	n := 0
	for _, t := range s.Input.InputCentroids {
		for i := 0; i < t.Rows(); i++ {
			t.Row(i, p.Candidates.RawRow(n))
			n++
		}
	}
	w := p.Weights.Data()
	clear(w)
	for _, t := range s.Input.InputOfStep5FromStep2 {
		for j := range w {
			w[j] += t.Row(j, nil)[0]
		}
	}
	p.NCandidates = n
	return nil
}

// Finalize runs weighted k-means++ over the candidates.
func (s *Step5Master) Finalize(ctx context.Context) error {
	return algorithm.RunFinalize(ctx, s.ID(), func(context.Context) error {
		p := s.partial
		st := status.New()
		if p == nil {
			return st.Add(status.ErrResultNotReady, "partialResult").Err()
		}
		st.Check(p.Candidates != nil, status.ErrResultNotReady, "candidates")
		st.Check(p.Weights != nil, status.ErrResultNotReady, "weights")
		if !st.OK() {
			return st.Err()
		}
		if p.NCandidates == 0 || p.NCandidates > p.Candidates.Rows() || p.Weights.Rows() < p.NCandidates {
			return st.Addf(status.ErrResultNotReady, "candidates", "%d candidates", p.NCandidates).Err()
		}
		if p.NCandidates < s.Parameter.NClusters {
			return st.Addf(status.ErrInconsistentPartialResults, "candidates",
				"%d candidates for %d clusters", p.NCandidates, s.Parameter.NClusters).Err()
		}

		centroids, err := s.Allocator.Dense("centroids", s.Parameter.NClusters, p.Candidates.Cols(), table.Float)
		if err != nil {
			return err
		}
		rng := rand.New(rand.NewPCG(s.Parameter.Seed, streamStep5))
		picks := weightedPlusPlus(rng, p.Candidates.SliceRows(0, p.NCandidates), p.Weights.Data()[:p.NCandidates], s.Parameter.NClusters)
		for k, idx := range picks {
			copy(centroids.RawRow(k), p.Candidates.RawRow(idx))
		}
		s.result = &Result{Centroids: centroids}
		return nil
	})
}

// weightedPlusPlus selects k rows of c with probability proportional to
// weight × squared distance to the closest row already selected.
func weightedPlusPlus(rng *rand.Rand, c *table.Dense, weights []float64, k int) []int {
	n := c.Rows()
	closest := make([]float64, n)
	for i := range closest {
		closest[i] = math.Inf(1)
	}
	score := make([]float64, n)
	picks := make([]int, 0, k)

	pick := func(scores []float64) int {
		if i := kernel.WeightedIndex(rng.Float64(), scores); i >= 0 {
			return i
		}
		if i := kernel.WeightedIndex(rng.Float64(), weights); i >= 0 {
			return i
		}
		return rng.IntN(n)
	}

	next := pick(weights)
	for len(picks) < k {
		picks = append(picks, next)
		center := c.RawRow(next)
		for i := 0; i < n; i++ {
			if d := kernel.SquaredL2(c.RawRow(i), center); d < closest[i] {
				closest[i] = d
			}
			score[i] = weights[i] * closest[i]
		}
		if len(picks) < k {
			next = pick(score)
		}
	}
	return picks
}
