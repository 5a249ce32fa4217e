package algorithm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stepwise/resource"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

type MockStage struct {
	mock.Mock
	id StepID
}

func (m *MockStage) ID() StepID { return m.id }

func (m *MockStage) Compute(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestCoordinator_RunStopsAfterFailure(t *testing.T) {
	step1 := &MockStage{id: Step1Local}
	step2 := &MockStage{id: Step2Local}
	step3 := &MockStage{id: Step3Master}

	failure := status.New().Add(status.ErrIncorrectNumberOfColumns, "data")
	step1.On("Compute", mock.Anything).Return(nil).Once()
	step2.On("Compute", mock.Anything).Return(failure).Once()

	c := NewCoordinator()
	err := c.Run(context.Background(), step1, step2, step3)
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrIncorrectNumberOfColumns)

	id, _, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, Step2Local, id)

	step1.AssertExpectations(t)
	step2.AssertExpectations(t)
	step3.AssertNotCalled(t, "Compute", mock.Anything)

	trace := c.Trace()
	require.Len(t, trace, 2)
	assert.NoError(t, trace[0].Err)
	assert.Error(t, trace[1].Err)
}

func TestCoordinator_RunGroup(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxWorkers: 2})

	var calls atomic.Int32
	var observed atomic.Int32
	c := NewCoordinator(
		WithController(rc),
		WithObserver(ObserverFunc(func(StepID, time.Duration, error) { observed.Add(1) })),
	)

	stages := make([]Stage, 5)
	for i := range stages {
		s := &MockStage{id: Step1Local}
		s.On("Compute", mock.Anything).Run(func(mock.Arguments) { calls.Add(1) }).Return(nil)
		stages[i] = s
	}
	require.NoError(t, c.RunGroup(context.Background(), stages...))
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, int32(5), observed.Load())
	assert.Len(t, c.Trace(), 5)

	bad := &MockStage{id: Step1Local}
	bad.On("Compute", mock.Anything).Return(errors.New("boom"))
	good := &MockStage{id: Step1Local}
	good.On("Compute", mock.Anything).Return(nil).Maybe()

	err := c.RunGroup(context.Background(), good, bad)
	require.Error(t, err)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, PhaseKernel, se.Phase)
}

type finalizer struct {
	err error
}

func (f *finalizer) ID() StepID                     { return Step2Master }
func (f *finalizer) Finalize(context.Context) error { return f.err }

func TestCoordinator_Finalize(t *testing.T) {
	c := NewCoordinator()
	require.NoError(t, c.Finalize(context.Background(), &finalizer{}))

	err := c.Finalize(context.Background(), &finalizer{err: status.New().Add(status.ErrResultNotReady, "partialResult")})
	assert.ErrorIs(t, err, status.ErrResultNotReady)
	_, phase, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, PhaseFinalize, phase)

	trace := c.Trace()
	require.Len(t, trace, 2)
	assert.True(t, trace[1].Final)

	c.Reset()
	assert.Empty(t, c.Trace())
}

func TestProcedure_PhaseOrder(t *testing.T) {
	var order []string
	p := Procedure{
		Check:    func() error { order = append(order, "check"); return nil },
		Allocate: func() error { order = append(order, "allocate"); return errors.New("oom") },
		Kernel:   func(context.Context) error { order = append(order, "kernel"); return nil },
	}
	err := p.Run(context.Background(), Step4Local)
	require.Error(t, err)
	assert.Equal(t, []string{"check", "allocate"}, order)

	_, phase, _ := FailedStep(err)
	assert.Equal(t, PhaseAllocate, phase)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	order = nil
	p.Allocate = nil
	assert.ErrorIs(t, p.Run(ctx, Step4Local), context.Canceled)
	assert.Equal(t, []string{"check"}, order)
}

func TestStepID_String(t *testing.T) {
	for _, id := range []StepID{BatchID, Step1Local, Step2Local, Step2Master, Step3Master, Step4Local, Step5Master} {
		parsed, err := ParseStepID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
	assert.Equal(t, "step3-master", Step3Master.String())

	_, err := ParseStepID("step9-local")
	assert.Error(t, err)
	_, err = ParseStepID("step2-worker")
	assert.Error(t, err)
}

func TestAllocator(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	a := NewAllocator(rc)

	d, err := a.Dense("closestCluster", 10, 1, table.Int)
	require.NoError(t, err)
	assert.Equal(t, table.Int, d.Kind())
	assert.Equal(t, int64(80), a.Bytes())

	_, err = a.Dense("candidates", 10, 1, table.Float)
	assert.ErrorIs(t, err, status.ErrMemoryAllocationFailed)
	assert.Equal(t, "candidates", status.From(err).Details()[0].Argument)

	a.Free(d, nil)
	assert.Equal(t, int64(0), a.InUse())
	assert.Equal(t, int64(80), a.Bytes())
	c, err := a.Dense("candidates", 10, 1, table.Float)
	require.NoError(t, err)
	a.Free(table.MustNew(1, 1, table.Float))
	assert.Equal(t, int64(80), rc.MemoryUsage())
	assert.Equal(t, 10, c.Rows())

	a.Release()
	assert.Equal(t, int64(0), rc.MemoryUsage())

	var unaccounted *Allocator
	d, err = unaccounted.Dense("x", 2, 2, table.Float)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Rows())
}
