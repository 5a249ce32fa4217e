package algorithm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stepwise/resource"
)

// Observer receives one notification per executed stage or finalize call.
type Observer interface {
	ObserveStep(id StepID, d time.Duration, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(id StepID, d time.Duration, err error)

func (f ObserverFunc) ObserveStep(id StepID, d time.Duration, err error) { f(id, d, err) }

// TraceEntry records one completed (or failed) stage.
type TraceEntry struct {
	ID       StepID
	Final    bool
	Duration time.Duration
	Err      error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger. Defaults to a logger that discards everything.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers an observer for stage timings.
func WithObserver(o Observer) CoordinatorOption {
	return func(c *Coordinator) { c.observer = o }
}

// WithController bounds RunGroup concurrency by the controller's worker slots.
func WithController(rc *resource.Controller) CoordinatorOption {
	return func(c *Coordinator) { c.rc = rc }
}

// Coordinator executes stages in protocol order.
//
// Run is strictly sequential: stage N+1 is never invoked after stage N
// failed. RunGroup runs the same step for disjoint partitions concurrently.
// A Coordinator is safe for concurrent use; the trace is shared.
type Coordinator struct {
	logger   *slog.Logger
	observer Observer
	rc       *resource.Controller

	mu    sync.Mutex
	trace []TraceEntry
}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes stages one after another and returns the first failure.
func (c *Coordinator) Run(ctx context.Context, stages ...Stage) error {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.exec(ctx, s.ID(), false, s.Compute); err != nil {
			return err
		}
	}
	return nil
}

// RunGroup executes stages concurrently and succeeds only if all succeed.
// The returned error joins every member failure.
func (c *Coordinator) RunGroup(ctx context.Context, stages ...Stage) error {
	if len(stages) == 1 {
		return c.Run(ctx, stages[0])
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range stages {
		g.Go(func() error {
			if err := c.rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer c.rc.ReleaseWorker()

			if err := c.exec(gctx, s.ID(), false, s.Compute); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if len(errs) == 0 {
			return err
		}
		return errors.Join(errs...)
	}
	return nil
}

// Finalize runs the finalizer of the last master step.
func (c *Coordinator) Finalize(ctx context.Context, f Finalizer) error {
	return c.exec(ctx, f.ID(), true, f.Finalize)
}

func (c *Coordinator) exec(ctx context.Context, id StepID, final bool, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)

	c.mu.Lock()
	c.trace = append(c.trace, TraceEntry{ID: id, Final: final, Duration: d, Err: err})
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObserveStep(id, d, err)
	}

	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "step failed",
			slog.String("step", id.String()),
			slog.Bool("finalize", final),
			slog.Duration("duration", d),
			slog.String("error", err.Error()),
		)
		var se *StepError
		if !errors.As(err, &se) {
			phase := PhaseKernel
			if final {
				phase = PhaseFinalize
			}
			err = &StepError{ID: id, Phase: phase, Err: err}
		}
		return err
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "step completed",
		slog.String("step", id.String()),
		slog.Bool("finalize", final),
		slog.Duration("duration", d),
	)
	return nil
}

// Trace returns the executed stages in completion order.
func (c *Coordinator) Trace() []TraceEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TraceEntry, len(c.trace))
	copy(out, c.trace)
	return out
}

// Reset clears the trace.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.trace = nil
	c.mu.Unlock()
}
