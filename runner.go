package stepwise

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/stepwise/adaboost"
	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/dtree"
	"github.com/hupe1980/stepwise/exchange"
	"github.com/hupe1980/stepwise/kmeansinit"
	"github.com/hupe1980/stepwise/naivebayes"
	"github.com/hupe1980/stepwise/pca"
	"github.com/hupe1980/stepwise/quantiles"
	"github.com/hupe1980/stepwise/resource"
	"github.com/hupe1980/stepwise/ridge"
	"github.com/hupe1980/stepwise/table"
)

// Runner runs the algorithm families over in-process partitions with a
// shared logger, metrics collector, resource controller and transport.
// A Runner is safe for concurrent use as long as concurrent runs use
// distinct job names.
type Runner struct {
	opts      options
	rc        *resource.Controller
	transport exchange.Transport
	env       Environment

	started int64
	runs    atomic.Uint64
}

// New creates a Runner.
func New(optFns ...Option) *Runner {
	o := applyOptions(optFns)
	r := &Runner{
		opts:    o,
		rc:      resource.NewController(o.resources),
		env:     DetectEnvironment(o.resources),
		started: time.Now().UnixNano(),
	}
	switch {
	case o.transport != nil:
		r.transport = o.transport
	case o.store != nil:
		r.transport = r.NewExchange()
	default:
		r.transport = exchange.Direct{}
	}
	r.opts.logger.LogEnvironment(context.Background(), r.env)
	return r
}

// NewExchange creates an exchange over the configured store, wired to the
// runner's registry, compression, controller, logger and metrics.
// It returns nil without a store.
func (r *Runner) NewExchange() *exchange.Exchange {
	if r.opts.store == nil {
		return nil
	}
	reg := r.opts.registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	mc := r.opts.metricsCollector
	opts := []exchange.Option{
		exchange.WithCompression(r.opts.compression),
		exchange.WithController(r.rc),
		exchange.WithLogger(r.opts.logger.Logger),
		exchange.WithTransferObserver(exchange.TransferObserverFunc(func(_ exchange.Key, bytes int, d time.Duration, err error) {
			mc.RecordTransfer(bytes, d, err)
		})),
	}
	if r.opts.commitLog != nil {
		opts = append(opts, exchange.WithCommitLog(r.opts.commitLog))
	}
	return exchange.New(r.opts.store, reg, opts...)
}

// Environment returns the environment steps run in.
func (r *Runner) Environment() Environment { return r.env }

// Controller returns the shared resource controller.
func (r *Runner) Controller() *resource.Controller { return r.rc }

// Transport returns the transport partial results travel through.
func (r *Runner) Transport() exchange.Transport { return r.transport }

// session is the per-run wiring.
type session struct {
	r      *Runner
	c      *algorithm.Coordinator
	alloc  *algorithm.Allocator
	logger *Logger
}

func (r *Runner) session(ctx context.Context, job string) *session {
	logger := r.opts.logger.WithJob(job)
	mc := r.opts.metricsCollector
	c := algorithm.NewCoordinator(
		algorithm.WithController(r.rc),
		algorithm.WithObserver(algorithm.ObserverFunc(func(id algorithm.StepID, d time.Duration, err error) {
			mc.RecordStep(id.String(), d, err)
			logger.LogStep(ctx, id, -1, err)
		})),
	)
	return &session{r: r, c: c, alloc: algorithm.NewAllocator(r.rc), logger: logger}
}

// done records the allocation and hands the allocated tables over to the
// caller.
func (s *session) done(err error) error {
	s.r.opts.metricsCollector.RecordAllocation(s.alloc.Bytes())
	s.alloc.Release()
	return translateError(err)
}

// jobName returns job, or a name unique to this run derived from def when
// job is empty. Committed steps of earlier runs never collide with it.
func (r *Runner) jobName(job, def string) string {
	if job != "" {
		return job
	}
	return fmt.Sprintf("%s-%x-%d", def, r.started, r.runs.Add(1))
}

// KMeansInit computes initial centroids over parts. An empty job is
// replaced by a fresh name prefixed with kmeansinit.DefaultJob.
func (r *Runner) KMeansInit(ctx context.Context, job string, m kmeansinit.Method, par kmeansinit.Parameter, parts []table.Table) (*kmeansinit.Result, error) {
	job = r.jobName(job, kmeansinit.DefaultJob)
	s := r.session(ctx, job)
	d := &kmeansinit.Driver{Method: m, Parameter: par, Coordinator: s.c, Transport: r.transport, Allocator: s.alloc, Job: job}
	res, err := d.Run(ctx, parts)
	if err := s.done(err); err != nil {
		return nil, err
	}
	return res, nil
}

// PCA computes principal components over parts.
func (r *Runner) PCA(ctx context.Context, job string, m pca.Method, par pca.Parameter, parts []table.Table) (*pca.Result, error) {
	job = r.jobName(job, pca.DefaultJob)
	s := r.session(ctx, job)
	d := &pca.Driver{Method: m, Parameter: par, Coordinator: s.c, Transport: r.transport, Allocator: s.alloc, Job: job}
	res, err := d.Run(ctx, parts)
	if err := s.done(err); err != nil {
		return nil, err
	}
	return res, nil
}

// NaiveBayes trains a multinomial naive Bayes model over parts.
func (r *Runner) NaiveBayes(ctx context.Context, job string, m naivebayes.Method, par naivebayes.Parameter, parts []naivebayes.Partition) (*naivebayes.Model, error) {
	job = r.jobName(job, naivebayes.DefaultJob)
	s := r.session(ctx, job)
	d := &naivebayes.Driver{Method: m, Parameter: par, Coordinator: s.c, Transport: r.transport, Allocator: s.alloc, Job: job}
	model, err := d.Train(ctx, parts)
	if err := s.done(err); err != nil {
		return nil, err
	}
	return model, nil
}

// Ridge trains a ridge regression model over parts.
func (r *Runner) Ridge(ctx context.Context, job string, m ridge.Method, par ridge.Parameter, parts []ridge.Partition) (*ridge.Model, error) {
	job = r.jobName(job, ridge.DefaultJob)
	s := r.session(ctx, job)
	d := &ridge.Driver{Method: m, Parameter: par, Coordinator: s.c, Transport: r.transport, Allocator: s.alloc, Job: job}
	model, err := d.Train(ctx, parts)
	if err := s.done(err); err != nil {
		return nil, err
	}
	return model, nil
}

// AdaBoost trains a boosted stump ensemble in batch mode.
func (r *Runner) AdaBoost(ctx context.Context, par adaboost.Parameter, data, labels table.Table) (*adaboost.Model, error) {
	s := r.session(ctx, "adaboost")
	t := adaboost.NewTrainer(par, data, labels)
	t.Allocator = s.alloc
	err := s.c.Run(ctx, t)
	if err := s.done(err); err != nil {
		return nil, err
	}
	return t.Model(), nil
}

// DecisionTree trains a regression tree in batch mode.
func (r *Runner) DecisionTree(ctx context.Context, par dtree.Parameter, in dtree.Input) (*dtree.Model, error) {
	s := r.session(ctx, "dtree")
	t := &dtree.Trainer{Parameter: par, Input: in, Allocator: s.alloc}
	err := s.c.Run(ctx, t)
	if err := s.done(err); err != nil {
		return nil, err
	}
	return t.Model(), nil
}

// Quantiles computes per-feature quantiles in batch mode.
func (r *Runner) Quantiles(ctx context.Context, par quantiles.Parameter, data table.Table) (*quantiles.Result, error) {
	s := r.session(ctx, "quantiles")
	b := quantiles.NewBatch(par, data)
	b.Allocator = s.alloc
	err := s.c.Run(ctx, b)
	if err := s.done(err); err != nil {
		return nil, err
	}
	return b.Result(), nil
}
