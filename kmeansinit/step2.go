package kmeansinit

import (
	"context"
	"math"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/internal/kernel"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// LocalData is the per-node state step 2 keeps between rounds. It is
// allocated once, on the first iteration, and updated in place afterwards.
type LocalData struct {
	// ClosestClusterDistance is nRows×1: squared distance of every row to
	// its closest cluster so far.
	ClosestClusterDistance *table.Dense
	// ClosestCluster is nRows×1 int: global candidate index of that cluster.
	ClosestCluster *table.Dense
	// NumberOfClusters is 1×1 int: candidates seen so far.
	NumberOfClusters *table.Dense
	// CandidateRating is MaxCandidates×1 int: rows closest to each
	// candidate. Only the parallel-plus methods carry it.
	CandidateRating *table.Dense
}

// Slots returns the allocated slots in canonical order: distance, cluster
// index, cluster count and, for parallel-plus, candidate rating.
func (l *LocalData) Slots() []*table.Dense {
	if l == nil {
		return nil
	}
	slots := []*table.Dense{l.ClosestClusterDistance, l.ClosestCluster, l.NumberOfClusters}
	if l.CandidateRating != nil {
		slots = append(slots, l.CandidateRating)
	}
	return slots
}

func (l *LocalData) check(s *status.Status, m Method, par Parameter, nRows int) {
	if l == nil || l.ClosestClusterDistance == nil || l.ClosestCluster == nil || l.NumberOfClusters == nil {
		s.Add(status.ErrNullInput, "internalInput")
		return
	}
	table.CheckInto(s, l.ClosestClusterDistance, "closestClusterDistance", table.Expect{Rows: nRows, Cols: 1, AllowEmpty: true})
	table.CheckInto(s, l.ClosestCluster, "closestCluster", table.Expect{Rows: nRows, Cols: 1, AllowEmpty: true})
	table.CheckInto(s, l.NumberOfClusters, "numberOfClusters", table.Expect{Rows: 1, Cols: 1})
	if m.IsParallelPlus() {
		if l.CandidateRating == nil {
			s.Add(status.ErrNullInput, "candidateRating")
		} else {
			table.CheckInto(s, l.CandidateRating, "candidateRating", table.Expect{Rows: par.MaxCandidates(), Cols: 1})
		}
	}
}

// Step2Input holds the data, the clusters added in the previous round and
// the local data of the previous iteration.
type Step2Input struct {
	Data table.Table
	// InputOfStep2 holds the clusters found in the previous round (m×nFeatures).
	InputOfStep2 table.Table
	// LocalData is the internal input. It is ignored on the first
	// iteration and required afterwards unless the partial result already
	// holds it.
	LocalData *LocalData
}

// Check validates the input. held is the local data already owned by the
// partial result, if any.
func (in *Step2Input) Check(par Parameter, m Method, held *LocalData) error {
	s := status.New()
	par.check(s, m, -1)
	if !table.CheckInto(s, in.Data, "data", table.Expect{UnexpectedLayouts: m.unexpectedLayouts()}) {
		table.CheckInto(s, in.InputOfStep2, "inputOfStep2", table.Expect{})
		return s.Err()
	}
	// A later round may bring no new clusters.
	table.CheckInto(s, in.InputOfStep2, "inputOfStep2", table.Expect{Cols: in.Data.Cols(), AllowEmpty: !par.FirstIteration})
	if !par.FirstIteration {
		local := held
		if local == nil {
			local = in.LocalData
		}
		local.check(s, m, par, in.Data.Rows())
		if s.OK() && m.IsParallelPlus() {
			seen := int(local.NumberOfClusters.Get(0, 0))
			if seen+in.InputOfStep2.Rows() > par.MaxCandidates() {
				s.Addf(status.ErrInconsistentPartialResults, "inputOfStep2",
					"%d candidates exceed capacity %d", seen+in.InputOfStep2.Rows(), par.MaxCandidates())
			}
		}
	} else if m.IsParallelPlus() && s.OK() && in.InputOfStep2.Rows() > par.MaxCandidates() {
		s.Addf(status.ErrInconsistentPartialResults, "inputOfStep2",
			"%d candidates exceed capacity %d", in.InputOfStep2.Rows(), par.MaxCandidates())
	}
	return s.Err()
}

// Step2PartialResult holds the outputs for steps 3 and 5 and the local data.
type Step2PartialResult struct {
	// OutputOfStep2ForStep3 is 1×1: the sum of closest distances.
	OutputOfStep2ForStep3 *table.Dense
	// OutputOfStep2ForStep5 is MaxCandidates×1 int candidate ratings,
	// present only for parallel-plus with OutputForStep5Required.
	OutputOfStep2ForStep5 *table.Dense
	LocalData             *LocalData
}

// Allocate creates the outputs fresh on every call, freeing those of the
// previous iteration, and the local data only when par.FirstIteration is
// set. On later iterations the local data is left untouched.
func (r *Step2PartialResult) Allocate(in *Step2Input, par Parameter, m Method, a *algorithm.Allocator) error {
	s := status.New()
	if m.IsParallelPlus() && !par.checkMaxCandidates(s) {
		return s.Err()
	}
	a.Free(r.OutputOfStep2ForStep3, r.OutputOfStep2ForStep5)

	out3, err := a.Dense("outputOfStep2ForStep3", 1, 1, table.Float)
	if err != nil {
		return err
	}
	r.OutputOfStep2ForStep3 = out3
	r.OutputOfStep2ForStep5 = nil

	if m.IsParallelPlus() && par.OutputForStep5Required {
		out5, err := a.Dense("outputOfStep2ForStep5", par.MaxCandidates(), 1, table.Int)
		if err != nil {
			return err
		}
		r.OutputOfStep2ForStep5 = out5
	}

	if !par.FirstIteration {
		if r.LocalData == nil {
			r.LocalData = in.LocalData
		}
		return nil
	}

	if table.IsNil(in.Data) {
		return status.New().Add(status.ErrNullInputNumericTable, "data").Err()
	}
	nRows := in.Data.Rows()
	local := &LocalData{}
	if local.ClosestClusterDistance, err = a.Dense("closestClusterDistance", nRows, 1, table.Float); err != nil {
		return err
	}
	if local.ClosestCluster, err = a.Dense("closestCluster", nRows, 1, table.Int); err != nil {
		return err
	}
	if local.NumberOfClusters, err = a.Dense("numberOfClusters", 1, 1, table.Int); err != nil {
		return err
	}
	if m.IsParallelPlus() {
		if local.CandidateRating, err = a.Dense("candidateRating", par.MaxCandidates(), 1, table.Int); err != nil {
			return err
		}
	}
	r.LocalData = local
	return nil
}

// Step2Local updates the closest distances with the clusters added in the
// previous round and reports their sum.
type Step2Local struct {
	Method    Method
	Parameter Parameter
	Input     Step2Input
	Allocator *algorithm.Allocator

	result *Step2PartialResult
}

// NewStep2Local creates the second local step.
func NewStep2Local(m Method, par Parameter, data table.Table) *Step2Local {
	return &Step2Local{Method: m, Parameter: par, Input: Step2Input{Data: data}}
}

func (s *Step2Local) ID() algorithm.StepID { return algorithm.Step2Local }

// PartialResult returns the partial result, nil before the first Compute.
func (s *Step2Local) PartialResult() *Step2PartialResult { return s.result }

// SetPartialResult makes Compute update r in place.
func (s *Step2Local) SetPartialResult(r *Step2PartialResult) { s.result = r }

func (s *Step2Local) Compute(ctx context.Context) error {
	if s.result == nil {
		s.result = &Step2PartialResult{}
	}
	return algorithm.Procedure{
		Check: func() error {
			var held *LocalData
			if !s.Parameter.FirstIteration {
				held = s.result.LocalData
			}
			return s.Input.Check(s.Parameter, s.Method, held)
		},
		Allocate: func() error { return s.result.Allocate(&s.Input, s.Parameter, s.Method, s.Allocator) },
		Kernel:   s.kernel,
	}.Run(ctx, s.ID())
}

func (s *Step2Local) kernel(ctx context.Context) error {
	local := s.result.LocalData
	dist := local.ClosestClusterDistance.Data()
	closest := local.ClosestCluster.Data()
	var rating []float64
	if local.CandidateRating != nil {
		rating = local.CandidateRating.Data()
	}

	if s.Parameter.FirstIteration {
		for i := range dist {
			dist[i] = math.Inf(1)
			closest[i] = -1
		}
		local.NumberOfClusters.Put(0, 0, 0)
		clear(rating)
	}

	centers := rowsOf(s.Input.InputOfStep2)
	norms := make([]float64, len(centers))
	for j, c := range centers {
		norms[j] = kernel.SquaredNorm(c)
	}
	base := int(local.NumberOfClusters.Get(0, 0))
	if rating != nil && base+len(centers) > len(rating) {
		return status.New().Addf(status.ErrInconsistentPartialResults, "candidateRating",
			"%d candidates exceed capacity %d", base+len(centers), len(rating))
	}

	pts := newPoints(s.Input.Data, s.Method)
	var sum float64
	for i := range dist {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		best := -1
		for j, c := range centers {
			if d := pts.dist2(i, c, norms[j]); d < dist[i] {
				dist[i] = d
				best = j
			}
		}
		if best >= 0 {
			if rating != nil {
				if old := int(closest[i]); old >= 0 {
					rating[old]--
				}
				rating[base+best]++
			}
			closest[i] = float64(base + best)
		}
		sum += dist[i]
	}
	local.NumberOfClusters.Put(0, 0, float64(base+len(centers)))
	s.result.OutputOfStep2ForStep3.Put(0, 0, sum)

	if out := s.result.OutputOfStep2ForStep5; out != nil {
		copy(out.Data(), rating)
	}
	return nil
}

// rowsOf copies the rows of t.
func rowsOf(t table.Table) [][]float64 {
	out := make([][]float64, t.Rows())
	for i := range out {
		out[i] = t.Row(i, nil)
	}
	return out
}
