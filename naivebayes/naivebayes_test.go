package naivebayes

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

// documents returns word counts where class c favors words 2c and 2c+1.
func documents(n, nClasses int) (*table.Dense, *table.Dense) {
	rng := testutil.NewRNG(21)
	data := rng.Counts(n, 2*nClasses, 2)
	labels := table.MustNew(n, 1, table.Int)
	for i := range n {
		c := i % nClasses
		labels.Put(i, 0, float64(c))
		data.Put(i, 2*c, data.Get(i, 2*c)+5)
		data.Put(i, 2*c+1, data.Get(i, 2*c+1)+5)
	}
	return data, labels
}

func TestTrain_HandComputed(t *testing.T) {
	data, err := table.FromRows([][]float64{{2, 0}, {0, 3}})
	require.NoError(t, err)
	labels, err := table.FromRows([][]float64{{0}, {1}})
	require.NoError(t, err)

	m, err := Train(context.Background(), DefaultDense, NewParameter(2), data, labels)
	require.NoError(t, err)

	assert.InDelta(t, math.Log(0.5), m.LogP.Get(0, 0), 1e-12)
	assert.InDelta(t, math.Log(0.75), m.LogTheta.Get(0, 0), 1e-12)
	assert.InDelta(t, math.Log(0.25), m.LogTheta.Get(0, 1), 1e-12)
	assert.InDelta(t, math.Log(0.2), m.LogTheta.Get(1, 0), 1e-12)
	assert.InDelta(t, math.Log(0.8), m.LogTheta.Get(1, 1), 1e-12)
}

func TestDriver_DistributedEqualsBatch(t *testing.T) {
	data, labels := documents(90, 3)
	par := NewParameter(3)

	batch, err := Train(context.Background(), DefaultDense, par, data, labels)
	require.NoError(t, err)

	reg := archive.NewRegistry()
	require.NoError(t, Register(reg))
	reg.Seal()
	ex := exchange.New(blobstore.NewMemoryStore(), reg, exchange.WithCommitLog(blobstore.NewMemoryCommitLog()))
	d := &Driver{Method: DefaultDense, Parameter: par, Transport: ex}

	dataParts, labelParts := testutil.Split(data, 3), testutil.Split(labels, 3)
	parts := make([]Partition, 3)
	for i := range parts {
		parts[i] = Partition{Data: dataParts[i], Labels: labelParts[i]}
	}
	dist, err := d.Train(context.Background(), parts)
	require.NoError(t, err)

	assert.InDeltaSlice(t, batch.LogP.Data(), dist.LogP.Data(), 1e-12)
	assert.InDeltaSlice(t, batch.LogTheta.Data(), dist.LogTheta.Data(), 1e-12)

	obj, err := ex.Fetch(context.Background(), exchange.Key{Job: DefaultJob, Step: algorithm.Step2Master, Name: "model"})
	require.NoError(t, err)
	assert.IsType(t, &Model{}, obj)

	pred, err := Predict(dist, data)
	require.NoError(t, err)
	correct := 0
	for i := range 90 {
		if pred.Get(i, 0) == labels.Get(i, 0) {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 85)
}

func TestCSR_EqualsDense(t *testing.T) {
	data, labels := documents(40, 2)
	dense, err := Train(context.Background(), DefaultDense, NewParameter(2), data, labels)
	require.NoError(t, err)
	sparse, err := Train(context.Background(), FastCSR, NewParameter(2), table.CSRFromDense(data), labels)
	require.NoError(t, err)

	assert.InDeltaSlice(t, dense.LogTheta.Data(), sparse.LogTheta.Data(), 1e-12)

	_, err = Train(context.Background(), DefaultDense, NewParameter(2), table.CSRFromDense(data), labels)
	assert.ErrorIs(t, err, status.ErrIncorrectTypeOfInputNumericTable)
}

func TestPriorsAndAlpha(t *testing.T) {
	data, labels := documents(20, 2)
	prior, err := table.FromRows([][]float64{{0.9, 0.1}})
	require.NoError(t, err)
	par := NewParameter(2)
	par.PriorClassEstimates = prior
	alpha := table.MustNew(1, 4, table.Float)
	alpha.Fill(0.5)
	par.Alpha = alpha

	m, err := Train(context.Background(), DefaultDense, par, data, labels)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.9), m.LogP.Get(0, 0), 1e-12)

	par.Alpha = table.MustNew(1, 3, table.Float)
	_, err = Train(context.Background(), DefaultDense, par, data, labels)
	assert.ErrorIs(t, err, status.ErrIncorrectNumberOfColumns)
}

func TestInput_Check(t *testing.T) {
	data, labels := documents(10, 2)

	err := NewStep1Local(DefaultDense, NewParameter(2), data, labels.SliceRows(0, 9)).Compute(context.Background())
	assert.ErrorIs(t, err, status.ErrIncorrectNumberOfRows)

	bad := labels.Clone()
	bad.Put(3, 0, 2)
	err = NewStep1Local(DefaultDense, NewParameter(2), data, bad).Compute(context.Background())
	assert.ErrorIs(t, err, status.ErrIncorrectParameter)

	packed, err := table.NewPacked(1, table.LayoutUpperPackedSymmetric, table.Float)
	require.NoError(t, err)
	err = NewStep1Local(DefaultDense, NewParameter(2), data.SliceRows(0, 1), packed).Compute(context.Background())
	assert.ErrorIs(t, err, status.ErrIncorrectTypeOfInputNumericTable)

	err = NewStep1Local(DefaultDense, NewParameter(0), data, nil).Compute(context.Background())
	st := status.From(err)
	assert.True(t, st.Has(status.ErrIncorrectParameter))
	assert.True(t, st.Has(status.ErrNullInputNumericTable))
}

func TestStep2_FinalizeBeforeCompute(t *testing.T) {
	master := NewStep2Master(DefaultDense, NewParameter(2), nil)
	assert.ErrorIs(t, master.Finalize(context.Background()), status.ErrResultNotReady)
	assert.ErrorIs(t, master.Compute(context.Background()), status.ErrNullInput)
}

func TestModel_ArchiveRoundTrip(t *testing.T) {
	data, labels := documents(12, 2)
	m, err := Train(context.Background(), DefaultDense, NewParameter(2), data, labels)
	require.NoError(t, err)

	raw, err := archive.Encode(m, archive.WithCompression(archive.CompressionLZ4))
	require.NoError(t, err)
	restored := &Model{}
	require.NoError(t, archive.DecodeInto(raw, restored))
	assert.True(t, table.Equal(m.LogTheta, restored.LogTheta))

	assert.ErrorIs(t, archive.DecodeInto(raw, &PartialModel{}), archive.ErrTagMismatch)
}
