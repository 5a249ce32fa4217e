package ridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/blobstore"
	"github.com/hupe1980/stepwise/exchange"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
	"github.com/hupe1980/stepwise/testutil"
)

func ols() Parameter {
	return Parameter{RidgeParameters: table.Scalar(0, table.Float), InterceptFlag: true}
}

func TestTrain_RecoversCoefficients(t *testing.T) {
	beta := []float64{0.5, 2, -1, 3}
	data, y := testutil.NewRNG(31).Linear(50, beta, 0)

	m, err := Train(context.Background(), NormEqDense, ols(), data, y)
	require.NoError(t, err)
	assert.InDeltaSlice(t, beta, m.Beta.RawRow(0), 1e-9)

	pred, err := Predict(m, data)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y.Data(), pred.Data(), 1e-9)
}

func TestTrain_WithoutIntercept(t *testing.T) {
	beta := []float64{0, 1.5, -2}
	data, y := testutil.NewRNG(32).Linear(30, beta, 0)
	par := ols()
	par.InterceptFlag = false

	m, err := Train(context.Background(), NormEqDense, par, data, y)
	require.NoError(t, err)
	assert.False(t, m.InterceptFlag)
	assert.Equal(t, 0.0, m.Beta.Get(0, 0))
	assert.InDeltaSlice(t, beta, m.Beta.RawRow(0), 1e-9)
}

func TestTrain_PenaltyShrinks(t *testing.T) {
	data, y := testutil.NewRNG(33).Linear(40, []float64{1, 4, -4}, 0.1)

	free, err := Train(context.Background(), NormEqDense, ols(), data, y)
	require.NoError(t, err)
	par := NewParameter()
	par.RidgeParameters = table.Scalar(100, table.Float)
	shrunk, err := Train(context.Background(), NormEqDense, par, data, y)
	require.NoError(t, err)

	norm := func(b []float64) float64 { return b[1]*b[1] + b[2]*b[2] }
	assert.Less(t, norm(shrunk.Beta.RawRow(0)), norm(free.Beta.RawRow(0)))
}

func TestDriver_DistributedMultiResponse(t *testing.T) {
	rng := testutil.NewRNG(34)
	data, y1 := rng.Linear(60, []float64{1, 2, 3}, 0)
	y := table.MustNew(60, 2, table.Float)
	for i := range 60 {
		y.Put(i, 0, y1.Get(i, 0))
		y.Put(i, 1, -y1.Get(i, 0))
	}
	par := NewParameter()
	penalties, err := table.FromRows([][]float64{{0.5, 2}})
	require.NoError(t, err)
	par.RidgeParameters = penalties

	batch, err := Train(context.Background(), NormEqDense, par, data, y)
	require.NoError(t, err)

	reg := archive.NewRegistry()
	require.NoError(t, Register(reg))
	ex := exchange.New(blobstore.NewMemoryStore(), reg, exchange.WithCommitLog(blobstore.NewMemoryCommitLog()))
	xs, ys := testutil.Split(data, 4), testutil.Split(y, 4)
	parts := make([]Partition, 4)
	for i := range parts {
		parts[i] = Partition{Data: xs[i], DependentVariables: ys[i]}
	}
	d := &Driver{Method: NormEqDense, Parameter: par, Transport: ex}
	dist, err := d.Train(context.Background(), parts)
	require.NoError(t, err)

	require.Equal(t, 2, dist.Beta.Rows())
	assert.InDeltaSlice(t, batch.Beta.Data(), dist.Beta.Data(), 1e-9)
	// Different penalties give different magnitudes for mirrored responses.
	assert.NotEqual(t, dist.Beta.Get(0, 1), -dist.Beta.Get(1, 1))
	assert.Len(t, ex.Records(DefaultJob), 5)
}

func TestInput_Check(t *testing.T) {
	data, y := testutil.NewRNG(35).Linear(10, []float64{1, 1}, 0)

	_, err := Train(context.Background(), NormEqDense, ols(), data, y.SliceRows(0, 8))
	assert.ErrorIs(t, err, status.ErrIncorrectNumberOfRows)

	par := ols()
	par.RidgeParameters = table.MustNew(1, 3, table.Float)
	_, err = Train(context.Background(), NormEqDense, par, data, y)
	assert.ErrorIs(t, err, status.ErrIncorrectNumberOfColumns)

	par.RidgeParameters = table.Scalar(-1, table.Float)
	_, err = Train(context.Background(), NormEqDense, par, data, y)
	assert.ErrorIs(t, err, status.ErrIncorrectParameter)

	par.RidgeParameters = nil
	_, err = Train(context.Background(), Method(3), par, data, y)
	st := status.From(err)
	assert.True(t, st.Has(status.ErrIncorrectMethod))
	assert.True(t, st.Has(status.ErrNullInputNumericTable))
}

func TestFinalize_Singular(t *testing.T) {
	data := table.MustNew(5, 2, table.Float)
	y := table.MustNew(5, 1, table.Float)
	for i := range 5 {
		data.Put(i, 0, float64(i))
		data.Put(i, 1, float64(2*i))
		y.Put(i, 0, float64(i))
	}
	_, err := Train(context.Background(), NormEqDense, ols(), data, y)
	assert.ErrorIs(t, err, status.ErrStepFailed)

	_, err = Train(context.Background(), NormEqDense, NewParameter(), data, y)
	assert.NoError(t, err)
}

func TestStep2_FinalizeBeforeCompute(t *testing.T) {
	master := NewStep2Master(NormEqDense, NewParameter(), nil)
	assert.ErrorIs(t, master.Finalize(context.Background()), status.ErrResultNotReady)

	master.SetPartialResult(&PartialResult{XTX: table.MustNew(2, 2, table.Float)})
	assert.ErrorIs(t, master.Finalize(context.Background()), status.ErrResultNotReady)
}

func TestModel_ArchiveRoundTrip(t *testing.T) {
	data, y := testutil.NewRNG(36).Linear(10, []float64{1, 1}, 0.1)
	m, err := Train(context.Background(), NormEqDense, NewParameter(), data, y)
	require.NoError(t, err)

	raw, err := archive.Encode(m)
	require.NoError(t, err)
	restored := &Model{}
	require.NoError(t, archive.DecodeInto(raw, restored))
	assert.True(t, table.Equal(m.Beta, restored.Beta))
	assert.True(t, restored.InterceptFlag)
}
