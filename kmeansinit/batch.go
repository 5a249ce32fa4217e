package kmeansinit

import (
	"context"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/table"
)

// Batch computes the initial centroids of data on a single node. It runs
// the same steps as the distributed protocol with one partition.
func Batch(ctx context.Context, m Method, par Parameter, data table.Table, opts ...BatchOption) (*Result, error) {
	d := &Driver{Method: m, Parameter: par}
	for _, opt := range opts {
		opt(d)
	}
	return d.Run(ctx, []table.Table{data})
}

// BatchOption configures Batch.
type BatchOption func(*Driver)

// WithCoordinator runs the batch steps on c.
func WithCoordinator(c *algorithm.Coordinator) BatchOption {
	return func(d *Driver) { d.Coordinator = c }
}

// WithAllocator accounts the batch tables with a.
func WithAllocator(a *algorithm.Allocator) BatchOption {
	return func(d *Driver) { d.Allocator = a }
}
