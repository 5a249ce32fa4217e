package naivebayes

import (
	"context"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/exchange"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// DefaultJob is the job name used when Driver.Job is empty.
const DefaultJob = "naivebayes"

// Partition is one node's share of the training set.
type Partition struct {
	Data   table.Table
	Labels table.Table
}

// Driver trains a model over partitions, shipping every partial model to
// the master through Transport.
type Driver struct {
	Method      Method
	Parameter   Parameter
	Coordinator *algorithm.Coordinator
	Transport   exchange.Transport
	Allocator   *algorithm.Allocator
	Job         string
}

// Train runs both steps and returns the finalized model.
func (d *Driver) Train(ctx context.Context, parts []Partition) (*Model, error) {
	if len(parts) == 0 {
		return nil, status.New().Add(status.ErrNullInput, "data").Err()
	}
	c, t, job := d.Coordinator, d.Transport, d.Job
	if c == nil {
		c = algorithm.NewCoordinator()
	}
	if t == nil {
		t = exchange.Direct{}
	}
	if job == "" {
		job = DefaultJob
	}

	steps := make([]*Step1Local, len(parts))
	stages := make([]algorithm.Stage, len(parts))
	for i, p := range parts {
		steps[i] = NewStep1Local(d.Method, d.Parameter, p.Data, p.Labels)
		steps[i].Allocator = d.Allocator
		stages[i] = steps[i]
	}
	if err := c.RunGroup(ctx, stages...); err != nil {
		return nil, err
	}

	partials := make([]*PartialModel, len(steps))
	for i, s := range steps {
		got, err := exchange.Send(ctx, t, exchange.Key{Job: job, Step: algorithm.Step1Local, Node: i}, s.PartialResult())
		if err != nil {
			return nil, err
		}
		partials[i] = got
	}
	if err := exchange.CommitStep(ctx, t, job, 0, algorithm.Step1Local, len(steps)); err != nil {
		return nil, err
	}

	master := NewStep2Master(d.Method, d.Parameter, partials)
	master.Allocator = d.Allocator
	if err := c.Run(ctx, master); err != nil {
		return nil, err
	}
	if err := c.Finalize(ctx, master); err != nil {
		return nil, err
	}
	model, err := exchange.Send(ctx, t, exchange.Key{Job: job, Step: algorithm.Step2Master, Name: "model"}, master.Model())
	if err != nil {
		return nil, err
	}
	return model, exchange.CommitStep(ctx, t, job, 0, algorithm.Step2Master, 1)
}

// Train fits a model on a single node.
func Train(ctx context.Context, m Method, par Parameter, data, labels table.Table) (*Model, error) {
	d := &Driver{Method: m, Parameter: par}
	return d.Train(ctx, []Partition{{Data: data, Labels: labels}})
}
