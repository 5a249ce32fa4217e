package kmeansinit

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Step3Input collects the distance sums of every node.
type Step3Input struct {
	// OutputOfStep2ForStep3 maps node to its 1×1 distance sum.
	OutputOfStep2ForStep3 map[int]table.Table
	// RNGState is the generator state left by the previous round, nil on
	// the first iteration.
	RNGState []byte
}

// Check validates the collection.
func (in *Step3Input) Check(par Parameter, m Method) error {
	s := status.New()
	par.check(s, m, -1)
	if !m.IsPlusPlus() {
		s.Addf(status.ErrIncorrectMethod, "method", "%s has no step3", m)
	}
	if len(in.OutputOfStep2ForStep3) == 0 {
		s.Add(status.ErrNullInput, "outputOfStep2ForStep3")
		return s.Err()
	}
	for _, node := range sortedNodes(in.OutputOfStep2ForStep3) {
		name := fmt.Sprintf("outputOfStep2ForStep3[%d]", node)
		t := in.OutputOfStep2ForStep3[node]
		if table.CheckInto(s, t, name, table.Expect{Rows: 1, Cols: 1}) {
			v := t.Row(0, nil)[0]
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				s.Addf(status.ErrInconsistentPartialResults, name, "invalid distance sum %v", v)
			}
		}
	}
	if !par.FirstIteration && len(in.RNGState) == 0 {
		s.Add(status.ErrNullInput, "rngState")
	}
	return s.Err()
}

// Step3PartialResult maps every selected node to the residuals it must
// resolve into rows in step 4.
type Step3PartialResult struct {
	// OutputOfStep3ForStep4 maps node to a 1×m table of residuals.
	// Nodes that were not selected have no entry.
	OutputOfStep3ForStep4 map[int]*table.Dense
	// RNGState is the generator state to pass to the next round.
	RNGState []byte
}

// Allocate does nothing: the master holds no per-row state and the
// per-node outputs are sized by the draw.
func (r *Step3PartialResult) Allocate(*Step3Input, Parameter, Method, *algorithm.Allocator) error {
	return nil
}

// Nodes returns the selected nodes in ascending order.
func (r *Step3PartialResult) Nodes() []int {
	if r == nil {
		return nil
	}
	return sortedNodes(r.OutputOfStep3ForStep4)
}

// ForNode returns the residuals for node.
func (r *Step3PartialResult) ForNode(node int) (*table.Dense, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.OutputOfStep3ForStep4[node]
	return t, ok
}

// Step3Master draws the nodes that contribute the next candidates.
type Step3Master struct {
	Method    Method
	Parameter Parameter
	Input     Step3Input
	Allocator *algorithm.Allocator

	result *Step3PartialResult
}

// NewStep3Master creates the drawing master step.
func NewStep3Master(m Method, par Parameter, sums map[int]table.Table, rngState []byte) *Step3Master {
	return &Step3Master{Method: m, Parameter: par, Input: Step3Input{OutputOfStep2ForStep3: sums, RNGState: rngState}}
}

func (s *Step3Master) ID() algorithm.StepID { return algorithm.Step3Master }

// PartialResult returns the partial result, nil before the first Compute.
func (s *Step3Master) PartialResult() *Step3PartialResult { return s.result }

func (s *Step3Master) Compute(ctx context.Context) error {
	if s.result == nil {
		s.result = &Step3PartialResult{}
	}
	return algorithm.Procedure{
		Check:    func() error { return s.Input.Check(s.Parameter, s.Method) },
		Allocate: func() error { return s.result.Allocate(&s.Input, s.Parameter, s.Method, s.Allocator) },
		Kernel:   s.kernel,
	}.Run(ctx, s.ID())
}

func (s *Step3Master) kernel(context.Context) error {
	pcg := rand.NewPCG(s.Parameter.Seed, streamStep3)
	if !s.Parameter.FirstIteration {
		if err := pcg.UnmarshalBinary(s.Input.RNGState); err != nil {
			return status.New().Addf(status.ErrInconsistentPartialResults, "rngState", "%v", err)
		}
	}
	rng := rand.New(pcg)

	nodes := sortedNodes(s.Input.OutputOfStep2ForStep3)
	sums := make([]float64, len(nodes))
	var total float64
	for i, node := range nodes {
		sums[i] = s.Input.OutputOfStep2ForStep3[node].Row(0, nil)[0]
		total += sums[i]
	}

	draws := 1
	if s.Method.IsParallelPlus() {
		draws = s.Parameter.SamplesPerRound()
	}

	residuals := make(map[int][]float64)
	if total > 0 {
		for range draws {
			target := rng.Float64() * total
			k, before := pickNode(sums, target)
			r := min(target-before, math.Nextafter(sums[k], 0))
			residuals[nodes[k]] = append(residuals[nodes[k]], max(r, 0))
		}
	}

	out := make(map[int]*table.Dense, len(residuals))
	for node, rs := range residuals {
		t, err := s.Allocator.Dense(fmt.Sprintf("outputOfStep3ForStep4[%d]", node), 1, len(rs), table.Float)
		if err != nil {
			return err
		}
		copy(t.Data(), rs)
		out[node] = t
	}

	state, err := pcg.MarshalBinary()
	if err != nil {
		return err
	}
	s.result.OutputOfStep3ForStep4 = out
	s.result.RNGState = state
	return nil
}

// pickNode returns the index whose cumulative range contains target and
// the cumulative sum before it.
func pickNode(sums []float64, target float64) (int, float64) {
	var acc float64
	last := -1
	for i, w := range sums {
		if w <= 0 {
			continue
		}
		if target < acc+w {
			return i, acc
		}
		acc += w
		last = i
	}
	return last, acc - sums[last]
}

func sortedNodes[T any](m map[int]T) []int {
	nodes := make([]int, 0, len(m))
	for node := range m {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	return nodes
}
