package kmeansinit

import (
	"context"
	"fmt"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/exchange"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// DefaultJob is the job name used when Driver.Job is empty.
const DefaultJob = "kmeansinit"

// Driver runs the full protocol over in-process partitions. Every partial
// result that crosses the node/master boundary goes through Transport, so
// an exchange.Exchange transport exercises the same archive path as a
// multi-process deployment. Local data never leaves its node.
type Driver struct {
	Method Method
	// Parameter holds the shared settings. NRowsTotal, Offset and the round
	// flags are derived per node and round.
	Parameter   Parameter
	Coordinator *algorithm.Coordinator
	Transport   exchange.Transport
	Allocator   *algorithm.Allocator
	Job         string
}

// run is the state of one Driver.Run call.
type run struct {
	d        *Driver
	c        *algorithm.Coordinator
	t        exchange.Transport
	job      string
	parts    []table.Table
	offsets  []int
	total    int
	features int
	// spent holds the step 3 and step 4 outputs of the current round.
	spent []*table.Dense
}

// Run computes the initial centroids of the rows of parts, taken in order
// as one data set.
func (d *Driver) Run(ctx context.Context, parts []table.Table) (*Result, error) {
	if !d.Method.Valid() {
		return nil, status.New().Add(status.ErrIncorrectMethod, "method").Err()
	}
	if len(parts) == 0 {
		return nil, status.New().Add(status.ErrNullInput, "data").Err()
	}
	r := &run{d: d, c: d.Coordinator, t: d.Transport, job: d.Job, parts: parts, offsets: make([]int, len(parts))}
	if r.c == nil {
		r.c = algorithm.NewCoordinator()
	}
	if r.t == nil {
		r.t = exchange.Direct{}
	}
	if r.job == "" {
		r.job = DefaultJob
	}
	st := status.New()
	for i, p := range parts {
		name := fmt.Sprintf("data[%d]", i)
		if table.IsNil(p) {
			st.Add(status.ErrNullInputNumericTable, name)
			continue
		}
		if i > 0 && !table.IsNil(parts[0]) && p.Cols() != parts[0].Cols() {
			st.Addf(status.ErrIncorrectNumberOfColumns, name, "expected %d, got %d", parts[0].Cols(), p.Cols())
		}
		r.offsets[i] = r.total
		r.total += p.Rows()
	}
	if !st.OK() {
		return nil, st.Err()
	}
	r.features = parts[0].Cols()

	clusters, err := r.step1(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case d.Method.IsParallelPlus():
		return r.parallelPlus(ctx, clusters)
	case d.Method.IsPlusPlus():
		return r.plusPlus(ctx, clusters)
	default:
		return r.merge(ctx, clusters)
	}
}

// nodeParameter is the parameter of node i in the given round state.
func (r *run) nodeParameter(i int, first, forStep5 bool) Parameter {
	par := r.d.Parameter
	par.NRowsTotal = r.total
	par.Offset = r.offsets[i]
	par.FirstIteration = first
	par.OutputForStep5Required = forStep5
	return par
}

func (r *run) masterParameter(first bool) Parameter {
	par := r.d.Parameter
	par.NRowsTotal = r.total
	par.Offset = 0
	par.FirstIteration = first
	return par
}

func (r *run) key(round int, step algorithm.StepID, node int) exchange.Key {
	return exchange.Key{Job: r.job, Round: round, Step: step, Node: node}
}

func (r *run) commit(ctx context.Context, round int, step algorithm.StepID, nNodes int) error {
	return exchange.CommitStep(ctx, r.t, r.job, round, step, nNodes)
}

func (r *run) step1(ctx context.Context) ([]*Step1PartialResult, error) {
	stages := make([]algorithm.Stage, len(r.parts))
	steps := make([]*Step1Local, len(r.parts))
	for i, p := range r.parts {
		steps[i] = NewStep1Local(r.d.Method, r.nodeParameter(i, true, false), p)
		steps[i].Allocator = r.d.Allocator
		stages[i] = steps[i]
	}
	if err := r.c.RunGroup(ctx, stages...); err != nil {
		return nil, err
	}

	out := make([]*Step1PartialResult, len(steps))
	for i, s := range steps {
		got, err := exchange.Send(ctx, r.t, r.key(0, algorithm.Step1Local, i), s.PartialResult())
		if err != nil {
			return nil, err
		}
		out[i] = got
	}
	return out, r.commit(ctx, 0, algorithm.Step1Local, len(steps))
}

// merge finishes the deterministic and random methods.
func (r *run) merge(ctx context.Context, partials []*Step1PartialResult) (*Result, error) {
	master := NewStep2Master(r.d.Method, r.masterParameter(true), partials)
	master.Allocator = r.d.Allocator
	if err := r.c.Run(ctx, master); err != nil {
		return nil, err
	}
	if err := r.c.Finalize(ctx, master); err != nil {
		return nil, err
	}
	return r.publishResult(ctx, 0, algorithm.Step2Master, master.Result(), true)
}

// publishResult ships the result next to the output of the master step
// that produced it. commit marks that step done when nothing else did.
func (r *run) publishResult(ctx context.Context, round int, step algorithm.StepID, res *Result, commit bool) (*Result, error) {
	key := r.key(round, step, 0)
	key.Name = "result"
	got, err := exchange.Send(ctx, r.t, key, res)
	if err != nil || !commit {
		return got, err
	}
	return got, r.commit(ctx, round, step, 1)
}

// plusPlus adds one centroid per round of steps 2 to 4.
func (r *run) plusPlus(ctx context.Context, partials []*Step1PartialResult) (*Result, error) {
	centroids := r.stack(clustersOf(partials)...)
	newest := centroids
	locals := r.newStep2Locals()

	var rngState []byte
	round := 0
	for ; centroids.Rows() < r.d.Parameter.NClusters; round++ {
		sums, err := r.step2(ctx, round, locals, newest, false)
		if err != nil {
			return nil, err
		}
		draw, err := r.step3(ctx, round, sums, rngState)
		if err != nil {
			return nil, err
		}
		if len(draw.Nodes()) == 0 {
			return nil, status.New().Addf(status.ErrInconsistentPartialResults, "data",
				"%d distinct rows for %d clusters", centroids.Rows(), r.d.Parameter.NClusters).Err()
		}
		rngState = draw.RNGState
		if newest, err = r.step4(ctx, round, locals, draw); err != nil {
			return nil, err
		}
		if centroids, err = table.VStack(table.Float, centroids, newest); err != nil {
			return nil, err
		}
		r.endRound()
	}
	if round == 0 {
		return r.publishResult(ctx, 0, algorithm.Step3Master, &Result{Centroids: centroids}, true)
	}
	return r.publishResult(ctx, round-1, algorithm.Step3Master, &Result{Centroids: centroids}, false)
}

// parallelPlus oversamples candidates for NRounds rounds and reduces them
// in step 5.
func (r *run) parallelPlus(ctx context.Context, partials []*Step1PartialResult) (*Result, error) {
	first := r.stack(clustersOf(partials)...)
	candidates := []table.Table{first}
	pending := first
	locals := r.newStep2Locals()

	var rngState []byte
	round := 0
	for ; round < r.d.Parameter.NRounds; round++ {
		sums, err := r.step2(ctx, round, locals, pending, false)
		if err != nil {
			return nil, err
		}
		pending = r.stack()
		draw, err := r.step3(ctx, round, sums, rngState)
		if err != nil {
			return nil, err
		}
		if len(draw.Nodes()) == 0 {
			// Every row coincides with a candidate.
			round++
			break
		}
		rngState = draw.RNGState
		if pending, err = r.step4(ctx, round, locals, draw); err != nil {
			return nil, err
		}
		candidates = append(candidates, pending)
		r.endRound()
	}

	ratings, err := r.step2Ratings(ctx, round, locals, pending)
	if err != nil {
		return nil, err
	}

	master := NewStep5Master(r.d.Method, r.masterParameter(false), candidates, ratings)
	master.Allocator = r.d.Allocator
	if err := r.c.Run(ctx, master); err != nil {
		return nil, err
	}
	shipped, err := exchange.Send(ctx, r.t, r.key(round, algorithm.Step5Master, 0), master.PartialResult())
	if err != nil {
		return nil, err
	}
	if err := r.commit(ctx, round, algorithm.Step5Master, 1); err != nil {
		return nil, err
	}
	master.SetPartialResult(shipped)
	if err := r.c.Finalize(ctx, master); err != nil {
		return nil, err
	}
	return r.publishResult(ctx, round, algorithm.Step5Master, master.Result(), false)
}

func (r *run) newStep2Locals() []*Step2Local {
	locals := make([]*Step2Local, len(r.parts))
	for i, p := range r.parts {
		locals[i] = NewStep2Local(r.d.Method, r.nodeParameter(i, true, false), p)
		locals[i].Allocator = r.d.Allocator
	}
	return locals
}

// runStep2 runs step 2 on every node with clusters as new input and ships
// the outputs without the local data.
func (r *run) runStep2(ctx context.Context, round int, locals []*Step2Local, clusters table.Table, forStep5 bool) ([]*Step2PartialResult, error) {
	stages := make([]algorithm.Stage, len(locals))
	for i, s := range locals {
		s.Parameter = r.nodeParameter(i, round == 0, forStep5)
		s.Input.InputOfStep2 = clusters
		stages[i] = s
	}
	if err := r.c.RunGroup(ctx, stages...); err != nil {
		return nil, err
	}

	out := make([]*Step2PartialResult, len(locals))
	for i, s := range locals {
		pr := s.PartialResult()
		outbound := &Step2PartialResult{
			OutputOfStep2ForStep3: pr.OutputOfStep2ForStep3,
			OutputOfStep2ForStep5: pr.OutputOfStep2ForStep5,
		}
		got, err := exchange.Send(ctx, r.t, r.key(round, algorithm.Step2Local, i), outbound)
		if err != nil {
			return nil, err
		}
		out[i] = got
	}
	return out, r.commit(ctx, round, algorithm.Step2Local, len(locals))
}

func (r *run) step2(ctx context.Context, round int, locals []*Step2Local, clusters table.Table, forStep5 bool) (map[int]table.Table, error) {
	outs, err := r.runStep2(ctx, round, locals, clusters, forStep5)
	if err != nil {
		return nil, err
	}
	sums := make(map[int]table.Table, len(outs))
	for i, o := range outs {
		sums[i] = o.OutputOfStep2ForStep3
	}
	return sums, nil
}

func (r *run) step2Ratings(ctx context.Context, round int, locals []*Step2Local, clusters table.Table) ([]table.Table, error) {
	outs, err := r.runStep2(ctx, round, locals, clusters, true)
	if err != nil {
		return nil, err
	}
	ratings := make([]table.Table, len(outs))
	for i, o := range outs {
		ratings[i] = o.OutputOfStep2ForStep5
	}
	return ratings, nil
}

func (r *run) step3(ctx context.Context, round int, sums map[int]table.Table, rngState []byte) (*Step3PartialResult, error) {
	master := NewStep3Master(r.d.Method, r.masterParameter(round == 0), sums, rngState)
	master.Allocator = r.d.Allocator
	if err := r.c.Run(ctx, master); err != nil {
		return nil, err
	}
	for _, t := range master.PartialResult().OutputOfStep3ForStep4 {
		r.spent = append(r.spent, t)
	}
	got, err := exchange.Send(ctx, r.t, r.key(round, algorithm.Step3Master, 0), master.PartialResult())
	if err != nil {
		return nil, err
	}
	return got, r.commit(ctx, round, algorithm.Step3Master, 1)
}

// step4 resolves the residuals on the drawn nodes and returns the new
// clusters in node order.
func (r *run) step4(ctx context.Context, round int, locals []*Step2Local, draw *Step3PartialResult) (*table.Dense, error) {
	nodes := draw.Nodes()
	stages := make([]algorithm.Stage, len(nodes))
	steps := make([]*Step4Local, len(nodes))
	for k, node := range nodes {
		if node < 0 || node >= len(r.parts) {
			return nil, status.New().Addf(status.ErrInconsistentPartialResults, "outputOfStep3ForStep4",
				"unknown node %d", node).Err()
		}
		residuals, _ := draw.ForNode(node)
		steps[k] = NewStep4Local(r.d.Method, r.nodeParameter(node, false, false), r.parts[node],
			locals[node].PartialResult().LocalData, residuals)
		steps[k].Allocator = r.d.Allocator
		stages[k] = steps[k]
	}
	if err := r.c.RunGroup(ctx, stages...); err != nil {
		return nil, err
	}

	rows := make([]table.Table, len(steps))
	for k, s := range steps {
		got, err := exchange.Send(ctx, r.t, r.key(round, algorithm.Step4Local, nodes[k]), s.PartialResult())
		if err != nil {
			return nil, err
		}
		rows[k] = got.OutputOfStep4
		r.spent = append(r.spent, s.PartialResult().OutputOfStep4)
	}
	// Only the drawn nodes deliver, so completeness is not checked here.
	return r.stack(rows...), nil
}

// endRound frees the step 3 and step 4 outputs once their rows were stacked.
func (r *run) endRound() {
	r.d.Allocator.Free(r.spent...)
	r.spent = r.spent[:0]
}

// stack concatenates tables of the partition feature count.
func (r *run) stack(tables ...table.Table) *table.Dense {
	out, err := table.VStack(table.Float, tables...)
	if err != nil || out.Rows() == 0 {
		// Column counts were checked by Run; only the empty case remains.
		return table.MustNew(0, r.features, table.Float)
	}
	return out
}

func clustersOf(partials []*Step1PartialResult) []table.Table {
	out := make([]table.Table, len(partials))
	for i, pr := range partials {
		out[i] = pr.PartialClusters
	}
	return out
}
