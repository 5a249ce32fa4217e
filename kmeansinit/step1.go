package kmeansinit

import (
	"context"
	"math/rand/v2"
	"slices"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Generator streams. Every node derives the same sequence from Seed.
const (
	streamStep1 uint64 = 0x6b6d0001
	streamStep3 uint64 = 0x6b6d0003
	streamStep5 uint64 = 0x6b6d0005
)

// Step1Input is the local partition.
type Step1Input struct {
	Data table.Table
}

// Check validates the input against par and m.
func (in *Step1Input) Check(par Parameter, m Method) error {
	s := status.New()
	if table.CheckInto(s, in.Data, "data", table.Expect{UnexpectedLayouts: m.unexpectedLayouts()}) {
		par.check(s, m, in.Data.Rows())
	} else {
		par.check(s, m, -1)
	}
	return s.Err()
}

// Step1PartialResult holds the rows this node contributes as initial clusters.
type Step1PartialResult struct {
	// PartialClusters is count×nFeatures; empty when the node owns none of
	// the selected rows.
	PartialClusters *table.Dense
	// PartialClustersNumber is the 1×1 count.
	PartialClustersNumber *table.Dense
}

// Allocate creates the cluster counter. The cluster rows are sized by the
// kernel since the count is only known after selection.
func (r *Step1PartialResult) Allocate(_ *Step1Input, _ Parameter, _ Method, a *algorithm.Allocator) error {
	if r.PartialClustersNumber != nil {
		return nil
	}
	n, err := a.Dense("partialClustersNumber", 1, 1, table.Int)
	if err != nil {
		return err
	}
	r.PartialClustersNumber = n
	return nil
}

// Count returns the number of contributed rows.
func (r *Step1PartialResult) Count() int {
	if r == nil || r.PartialClustersNumber == nil {
		return 0
	}
	return int(r.PartialClustersNumber.Get(0, 0))
}

// Step1Local selects the initial rows owned by one node.
type Step1Local struct {
	Method    Method
	Parameter Parameter
	Input     Step1Input
	Allocator *algorithm.Allocator

	result *Step1PartialResult
}

// NewStep1Local creates the first local step over data.
func NewStep1Local(m Method, par Parameter, data table.Table) *Step1Local {
	return &Step1Local{Method: m, Parameter: par, Input: Step1Input{Data: data}}
}

func (s *Step1Local) ID() algorithm.StepID { return algorithm.Step1Local }

// PartialResult returns the partial result, nil before the first Compute.
func (s *Step1Local) PartialResult() *Step1PartialResult { return s.result }

// SetPartialResult makes Compute fill r instead of a new partial result.
func (s *Step1Local) SetPartialResult(r *Step1PartialResult) { s.result = r }

func (s *Step1Local) Compute(ctx context.Context) error {
	if s.result == nil {
		s.result = &Step1PartialResult{}
	}
	return algorithm.Procedure{
		Check:    func() error { return s.Input.Check(s.Parameter, s.Method) },
		Allocate: func() error { return s.result.Allocate(&s.Input, s.Parameter, s.Method, s.Allocator) },
		Kernel:   s.kernel,
	}.Run(ctx, s.ID())
}

func (s *Step1Local) kernel(context.Context) error {
	data := s.Input.Data
	nRows := data.Rows()
	par := s.Parameter

	var local []int
	for _, g := range selectInitial(s.Method, par.NClusters, par.rowsTotal(nRows), par.Seed) {
		if g >= par.Offset && g < par.Offset+nRows {
			local = append(local, g-par.Offset)
		}
	}

	clusters, err := s.Allocator.Dense("partialClusters", len(local), data.Cols(), table.Float)
	if err != nil {
		return err
	}
	for k, i := range local {
		data.Row(i, clusters.RawRow(k))
	}
	s.result.PartialClusters = clusters
	s.result.PartialClustersNumber.Put(0, 0, float64(len(local)))
	return nil
}

// selectInitial returns the global row indices step 1 selects, in
// ascending order. Plus-plus methods select a single row.
func selectInitial(m Method, nClusters, nRowsTotal int, seed uint64) []int {
	switch {
	case m == DeterministicDense:
		out := make([]int, min(nClusters, nRowsTotal))
		for i := range out {
			out[i] = i
		}
		return out
	case m == RandomDense:
		return sampleDistinct(rand.New(rand.NewPCG(seed, streamStep1)), nRowsTotal, min(nClusters, nRowsTotal))
	case m.IsPlusPlus():
		if nRowsTotal == 0 {
			return nil
		}
		return []int{rand.New(rand.NewPCG(seed, streamStep1)).IntN(nRowsTotal)}
	default:
		return nil
	}
}

// sampleDistinct draws k distinct values from [0, n) with Floyd's algorithm.
func sampleDistinct(rng *rand.Rand, n, k int) []int {
	seen := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rng.IntN(j + 1)
		if _, ok := seen[t]; ok {
			t = j
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
