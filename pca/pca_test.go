package pca

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/blobstore"
	"github.com/hupe1980/stepwise/exchange"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
	"github.com/hupe1980/stepwise/testutil"
)

// correlated returns rows whose second column is twice the first and whose
// third column is independent noise.
func correlated(n int) *table.Dense {
	rng := testutil.NewRNG(11)
	base := rng.Gaussian(n, 2)
	out := table.MustNew(n, 3, table.Float)
	for i := range n {
		x := base.Get(i, 0)
		out.Put(i, 0, x)
		out.Put(i, 1, 2*x)
		out.Put(i, 2, base.Get(i, 1))
	}
	return out
}

func TestBatch_PerfectCorrelation(t *testing.T) {
	res, err := Batch(context.Background(), CorrelationDense, Parameter{IsDeterministic: true}, correlated(200))
	require.NoError(t, err)

	values := res.Eigenvalues.Data()
	require.Len(t, values, 3)
	var trace float64
	for _, v := range values {
		trace += v
	}
	assert.InDelta(t, 3, trace, 1e-9)
	assert.InDelta(t, 2, values[0], 0.2)
	assert.InDelta(t, 0, values[2], 1e-9)
	assert.GreaterOrEqual(t, values[0], values[1])

	first := res.Eigenvectors.RawRow(0)
	assert.InDelta(t, first[0], first[1], 1e-6)
	assert.Positive(t, first[0])

	for a := range 3 {
		for b := range 3 {
			var dot float64
			for j := range 3 {
				dot += res.Eigenvectors.Get(a, j) * res.Eigenvectors.Get(b, j)
			}
			want := 0.0
			if a == b {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-9)
		}
	}
}

func TestDriver_DistributedEqualsBatch(t *testing.T) {
	data := testutil.NewRNG(12).Gaussian(90, 4)
	par := Parameter{NComponents: 2, IsDeterministic: true}

	batch, err := Batch(context.Background(), CorrelationDense, par, data)
	require.NoError(t, err)

	reg := archive.NewRegistry()
	require.NoError(t, Register(reg))
	commits := blobstore.NewMemoryCommitLog()
	ex := exchange.New(blobstore.NewMemoryStore(), reg, exchange.WithCommitLog(commits))
	d := &Driver{Method: CorrelationDense, Parameter: par, Transport: ex}

	dist, err := d.Run(context.Background(), testutil.SplitUneven(data, 10, 30, 55))
	require.NoError(t, err)

	assert.Equal(t, 2, dist.Eigenvectors.Rows())
	assert.InDeltaSlice(t, batch.Eigenvalues.Data(), dist.Eigenvalues.Data(), 1e-9)
	assert.InDeltaSlice(t, batch.Eigenvectors.Data(), dist.Eigenvectors.Data(), 1e-9)
	assert.InDeltaSlice(t, batch.Means.Data(), dist.Means.Data(), 1e-12)

	ok, err := commits.Committed(context.Background(), "pca/r0/step2-master")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ex.Complete(DefaultJob, 0, algorithm.Step1Local, 4))
}

func TestCSR_EqualsDense(t *testing.T) {
	data := testutil.NewRNG(13).Counts(60, 5, 3)
	dense := NewStep1Local(CorrelationDense, Parameter{}, data)
	require.NoError(t, dense.Compute(context.Background()))

	sparse := NewStep1Local(CorrelationCSR, Parameter{}, table.CSRFromDense(data))
	require.NoError(t, sparse.Compute(context.Background()))

	assert.InDeltaSlice(t, dense.PartialResult().CrossProduct.Data(), sparse.PartialResult().CrossProduct.Data(), 1e-9)
	assert.InDeltaSlice(t, dense.PartialResult().SumData.Data(), sparse.PartialResult().SumData.Data(), 1e-9)
	assert.Equal(t, 60.0, sparse.PartialResult().NObservations.Get(0, 0))
}

func TestStep1_AccumulatesBlocks(t *testing.T) {
	data := testutil.NewRNG(14).Uniform(40, 3)
	whole := NewStep1Local(CorrelationDense, Parameter{}, data)
	require.NoError(t, whole.Compute(context.Background()))

	step := NewStep1Local(CorrelationDense, Parameter{}, data.SliceRows(0, 15))
	require.NoError(t, step.Compute(context.Background()))
	first := step.PartialResult().CrossProduct
	step.Input.Data = data.SliceRows(15, 40)
	require.NoError(t, step.Compute(context.Background()))

	assert.Same(t, first, step.PartialResult().CrossProduct)
	assert.InDeltaSlice(t, whole.PartialResult().CrossProduct.Data(), first.Data(), 1e-9)

	step.Input.Data = testutil.NewRNG(1).Uniform(3, 4)
	assert.ErrorIs(t, step.Compute(context.Background()), status.ErrIncorrectNumberOfColumns)
}

func TestStep2_InconsistentPartials(t *testing.T) {
	a := NewStep1Local(CorrelationDense, Parameter{}, testutil.NewRNG(1).Uniform(5, 2))
	b := NewStep1Local(CorrelationDense, Parameter{}, testutil.NewRNG(2).Uniform(5, 3))
	require.NoError(t, a.Compute(context.Background()))
	require.NoError(t, b.Compute(context.Background()))

	master := NewStep2Master(CorrelationDense, Parameter{}, []*PartialResult{a.PartialResult(), b.PartialResult(), nil})
	err := master.Compute(context.Background())
	st := status.From(err)
	assert.True(t, st.Has(status.ErrIncorrectNumberOfColumns))
	assert.True(t, st.Has(status.ErrNullPartialResult))
}

func TestStep2_FinalizeBeforeCompute(t *testing.T) {
	master := NewStep2Master(CorrelationDense, Parameter{}, nil)
	assert.ErrorIs(t, master.Finalize(context.Background()), status.ErrResultNotReady)

	master.SetPartialResult(&PartialResult{NObservations: table.Scalar(3, table.Int)})
	err := master.Finalize(context.Background())
	assert.ErrorIs(t, err, status.ErrResultNotReady)
	assert.Len(t, status.From(err).Details(), 2)
}

func TestParameter_TooManyComponents(t *testing.T) {
	_, err := Batch(context.Background(), CorrelationDense, Parameter{NComponents: 4}, testutil.NewRNG(3).Uniform(10, 3))
	assert.ErrorIs(t, err, status.ErrIncorrectParameter)
}

func TestTransform(t *testing.T) {
	data := correlated(100)
	res, err := Batch(context.Background(), CorrelationDense, Parameter{NComponents: 1, IsDeterministic: true}, data)
	require.NoError(t, err)

	scores, err := Transform(res, data)
	require.NoError(t, err)
	require.Equal(t, 100, scores.Rows())
	require.Equal(t, 1, scores.Cols())

	var mean, sq float64
	for _, v := range scores.Data() {
		mean += v
		sq += v * v
	}
	mean /= 100
	assert.InDelta(t, 0, mean, 1e-9)
	// Sample variance of the scores equals the eigenvalue.
	assert.InDelta(t, res.Eigenvalues.Get(0, 0), (sq-100*mean*mean)/99, 1e-6)

	_, err = Transform(res, testutil.NewRNG(1).Uniform(2, 2))
	assert.ErrorIs(t, err, status.ErrIncorrectNumberOfColumns)
}

func TestArchive_RoundTrip(t *testing.T) {
	reg := archive.NewRegistry()
	require.NoError(t, Register(reg))

	res, err := Batch(context.Background(), CorrelationDense, Parameter{}, testutil.NewRNG(4).Gaussian(30, 3))
	require.NoError(t, err)
	raw, err := archive.Encode(res, archive.WithCompression(archive.CompressionZstd))
	require.NoError(t, err)

	obj, err := reg.Decode(raw)
	require.NoError(t, err)
	got := obj.(*Result)
	assert.True(t, table.Equal(res.Eigenvectors, got.Eigenvectors))
	assert.True(t, table.Equal(res.Variances, got.Variances))
	assert.False(t, math.IsNaN(got.Eigenvalues.Get(0, 0)))
}
