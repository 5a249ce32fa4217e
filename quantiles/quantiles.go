package quantiles

import (
	"context"
	"math"
	"slices"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// DefaultOrder is the order used when Parameter.QuantileOrders is nil.
const DefaultOrder = 0.5

// Parameter configures the computation.
type Parameter struct {
	// QuantileOrders is 1×m with every order in [0, 1]. Nil means the
	// median only.
	QuantileOrders table.Table
}

// Orders returns the requested orders.
func (p Parameter) Orders() []float64 {
	if table.IsNil(p.QuantileOrders) {
		return []float64{DefaultOrder}
	}
	return p.QuantileOrders.Row(0, nil)
}

func (p Parameter) check(s *status.Status) {
	if table.IsNil(p.QuantileOrders) {
		return
	}
	if !table.CheckInto(s, p.QuantileOrders, "quantileOrders", table.Expect{Rows: 1}) {
		return
	}
	for _, q := range p.QuantileOrders.Row(0, nil) {
		if q < 0 || q > 1 || math.IsNaN(q) {
			s.Addf(status.ErrIncorrectParameter, "quantileOrders", "order %v outside [0, 1]", q)
			return
		}
	}
}

// Input holds the data, n observations of p features.
type Input struct {
	Data table.Table
}

// Check validates the input against par.
func (in *Input) Check(par Parameter) error {
	s := status.New()
	par.check(s)
	table.CheckInto(s, in.Data, "data", table.Expect{UnexpectedLayouts: table.PackedLayouts})
	return s.Err()
}

// TagResult is the archive tag of Result.
const TagResult archive.Tag = 0x51550001

// Register adds the quantiles result to reg.
func Register(reg *archive.Registry) error {
	return reg.Register(TagResult, func() archive.Serializable { return &Result{} })
}

// Result holds one row per feature and one column per order.
type Result struct {
	Quantiles *table.Dense
}

// Allocate sizes the result p×m, keeping an existing table of that shape.
func (r *Result) Allocate(in *Input, par Parameter, a *algorithm.Allocator) error {
	p, m := in.Data.Cols(), len(par.Orders())
	if r.Quantiles != nil && r.Quantiles.Rows() == p && r.Quantiles.Cols() == m {
		return nil
	}
	q, err := a.Dense("quantiles", p, m, table.Float)
	if err != nil {
		return err
	}
	r.Quantiles = q
	return nil
}

func (r *Result) ArchiveTag() archive.Tag { return TagResult }

func (r *Result) MarshalArchive(w *archive.Writer) { w.Table(r.Quantiles) }

func (r *Result) UnmarshalArchive(rd *archive.Reader) { r.Quantiles = rd.Dense() }

// Batch computes the quantiles of every feature.
type Batch struct {
	Parameter Parameter
	Input     Input
	Allocator *algorithm.Allocator

	result *Result
}

// NewBatch creates the batch stage over data.
func NewBatch(par Parameter, data table.Table) *Batch {
	return &Batch{Parameter: par, Input: Input{Data: data}}
}

func (b *Batch) ID() algorithm.StepID { return algorithm.BatchID }

// Result returns the result, nil before the first Compute.
func (b *Batch) Result() *Result { return b.result }

// SetResult makes Compute write into r.
func (b *Batch) SetResult(r *Result) { b.result = r }

func (b *Batch) Compute(ctx context.Context) error {
	if b.result == nil {
		b.result = &Result{}
	}
	return algorithm.Procedure{
		Check:    func() error { return b.Input.Check(b.Parameter) },
		Allocate: func() error { return b.result.Allocate(&b.Input, b.Parameter, b.Allocator) },
		Kernel:   b.kernel,
	}.Run(ctx, b.ID())
}

func (b *Batch) kernel(ctx context.Context) error {
	orders := b.Parameter.Orders()
	out := b.result.Quantiles
	for j := range b.Input.Data.Cols() {
		if err := ctx.Err(); err != nil {
			return err
		}
		col := table.Column(b.Input.Data, j)
		slices.Sort(col)
		for k, q := range orders {
			out.Put(j, k, quantile(col, q))
		}
	}
	return nil
}

// quantile interpolates linearly between the order statistics around
// q·(n-1) of the sorted values.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(sorted)-1)
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// Compute returns the quantiles of every column of data.
func Compute(ctx context.Context, par Parameter, data table.Table) (*Result, error) {
	b := NewBatch(par, data)
	if err := b.Compute(ctx); err != nil {
		return nil, err
	}
	return b.Result(), nil
}
