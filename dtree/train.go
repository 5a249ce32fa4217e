package dtree

import (
	"context"
	"math"
	"sort"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Trainer is the batch training stage.
type Trainer struct {
	Parameter Parameter
	Input     Input
	Allocator *algorithm.Allocator

	model *Model
}

// NewTrainer creates a trainer without a pruning set.
func NewTrainer(par Parameter, data, dependentVariables table.Table) *Trainer {
	return &Trainer{Parameter: par, Input: Input{Data: data, DependentVariables: dependentVariables}}
}

func (t *Trainer) ID() algorithm.StepID { return algorithm.BatchID }

// Model returns the trained model, nil before a successful Compute.
func (t *Trainer) Model() *Model { return t.model }

func (t *Trainer) Compute(ctx context.Context) error {
	return algorithm.Procedure{
		Check:  func() error { return t.Input.Check(t.Parameter) },
		Kernel: t.train,
	}.Run(ctx, t.ID())
}

// Train fits a regression tree. The pruning set is only read when
// par.Pruning is ReducedErrorPruning.
func Train(ctx context.Context, par Parameter, in Input) (*Model, error) {
	t := &Trainer{Parameter: par, Input: in}
	if err := t.Compute(ctx); err != nil {
		return nil, err
	}
	return t.Model(), nil
}

type grower struct {
	par   Parameter
	x     *table.Dense
	y     []float64
	nodes []Node
	ctx   context.Context
}

func (t *Trainer) train(ctx context.Context) error {
	x := table.ToDense(t.Input.Data)
	y, err := t.Allocator.Dense("dependentVariables", x.Rows(), 1, table.Float)
	if err != nil {
		return err
	}
	copy(y.Data(), table.Column(t.Input.DependentVariables, 0))

	g := &grower{par: t.Parameter, x: x, y: y.Data(), ctx: ctx}
	rows := make([]int, x.Rows())
	for i := range rows {
		rows[i] = i
	}
	if _, err := g.grow(rows, 0); err != nil {
		return err
	}
	m := &Model{Nodes: g.nodes, NFeatures: x.Cols()}

	if t.Parameter.Pruning == ReducedErrorPruning {
		px := table.ToDense(t.Input.DataForPruning)
		py := table.Column(t.Input.DependentVariablesForPruning, 0)
		all := make([]int, px.Rows())
		for i := range all {
			all[i] = i
		}
		m.prune(0, px, py, all)
		m.compact()
	}
	t.model = m
	return nil
}

// grow appends the subtree over rows and returns its root index.
func (g *grower) grow(rows []int, depth int) (int, error) {
	if err := g.ctx.Err(); err != nil {
		return -1, err
	}
	var sum, sq float64
	for _, i := range rows {
		sum += g.y[i]
		sq += g.y[i] * g.y[i]
	}
	n := float64(len(rows))
	mean := sum / n
	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: -1, Left: -1, Right: -1, Value: mean, Count: len(rows)})

	if (g.par.MaxTreeDepth > 0 && depth >= g.par.MaxTreeDepth) || len(rows) < 2*g.par.MinObservationsInLeaf {
		return idx, nil
	}
	sse := sq - sum*sum/n
	if sse <= 1e-12 {
		return idx, nil
	}

	feature, threshold, ok := g.bestSplit(rows, sum, sq, sse)
	if !ok {
		return idx, nil
	}
	var left, right []int
	for _, i := range rows {
		if g.x.Get(i, feature) < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l, err := g.grow(left, depth+1)
	if err != nil {
		return -1, err
	}
	r, err := g.grow(right, depth+1)
	if err != nil {
		return -1, err
	}
	g.nodes[idx].Feature = feature
	g.nodes[idx].Threshold = threshold
	g.nodes[idx].Left, g.nodes[idx].Right = l, r
	return idx, nil
}

// bestSplit returns the split with the largest reduction of the sum of
// squared errors that keeps both children at MinObservationsInLeaf rows.
func (g *grower) bestSplit(rows []int, sum, sq, sse float64) (int, float64, bool) {
	n := len(rows)
	minLeaf := g.par.MinObservationsInLeaf
	bestGain := 1e-12 * math.Max(1, sse)
	feature, threshold, found := -1, 0.0, false

	sorted := make([]int, n)
	for j := range g.x.Cols() {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(a, b int) bool { return g.x.Get(sorted[a], j) < g.x.Get(sorted[b], j) })

		var sl, ql float64
		for k := 0; k < n-1; k++ {
			i := sorted[k]
			sl += g.y[i]
			ql += g.y[i] * g.y[i]
			v, next := g.x.Get(i, j), g.x.Get(sorted[k+1], j)
			if v == next {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			if k+1 < minLeaf || n-k-1 < minLeaf {
				continue
			}
			child := (ql - sl*sl/nl) + ((sq - ql) - (sum-sl)*(sum-sl)/nr)
			if gain := sse - child; gain > bestGain {
				bestGain, feature, threshold, found = gain, j, (v+next)/2, true
			}
		}
	}
	return feature, threshold, found
}

// prune collapses, bottom-up, every subtree whose squared error on the
// pruning rows is not lower than that of a leaf at its root. It returns
// the error of what remains.
func (m *Model) prune(k int, x *table.Dense, y []float64, rows []int) float64 {
	nd := &m.Nodes[k]
	var leaf float64
	for _, i := range rows {
		d := y[i] - nd.Value
		leaf += d * d
	}
	if nd.Leaf() {
		return leaf
	}
	var left, right []int
	for _, i := range rows {
		if x.Get(i, nd.Feature) < nd.Threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	sub := m.prune(nd.Left, x, y, left) + m.prune(nd.Right, x, y, right)
	if leaf <= sub {
		nd.Feature, nd.Threshold, nd.Left, nd.Right = -1, 0, -1, -1
		return leaf
	}
	return sub
}

// compact drops the nodes that pruning made unreachable.
func (m *Model) compact() {
	var out []Node
	var walk func(k int) int
	walk = func(k int) int {
		nd := m.Nodes[k]
		idx := len(out)
		out = append(out, nd)
		if !nd.Leaf() {
			l := walk(nd.Left)
			r := walk(nd.Right)
			out[idx].Left, out[idx].Right = l, r
		}
		return idx
	}
	walk(0)
	m.Nodes = out
}

// Predict returns the tree response for every row of data as an n×1 table.
func Predict(m *Model, data table.Table) (*table.Dense, error) {
	s := status.New()
	if m == nil || len(m.Nodes) == 0 {
		return nil, s.Add(status.ErrNullInput, "model").Err()
	}
	if !table.CheckInto(s, data, "data", table.Expect{Cols: m.NFeatures, UnexpectedLayouts: table.PackedLayouts}) {
		return nil, s.Err()
	}
	out := table.MustNew(data.Rows(), 1, table.Float)
	var row []float64
	for i := range data.Rows() {
		row = data.Row(i, row)
		out.Put(i, 0, m.predict(row))
	}
	return out, nil
}
