package quantiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/resource"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

func orders(t *testing.T, q ...float64) *table.Dense {
	t.Helper()
	d, err := table.FromData(1, len(q), table.Float, q)
	require.NoError(t, err)
	return d
}

func TestCompute(t *testing.T) {
	data, err := table.FromRows([][]float64{
		{5, 10},
		{1, 40},
		{3, 20},
		{2, 30},
		{4, 50},
	})
	require.NoError(t, err)

	res, err := Compute(context.Background(), Parameter{QuantileOrders: orders(t, 0, 0.25, 0.5, 0.9, 1)}, data)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Quantiles.Rows())
	assert.Equal(t, 5, res.Quantiles.Cols())
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4.6, 5}, res.Quantiles.RawRow(0), 1e-12)
	assert.InDeltaSlice(t, []float64{10, 20, 30, 46, 50}, res.Quantiles.RawRow(1), 1e-12)

	// Input is not reordered.
	assert.Equal(t, 5.0, data.Get(0, 0))
}

func TestCompute_DefaultMedian(t *testing.T) {
	data, err := table.FromRows([][]float64{{4}, {1}, {3}, {2}})
	require.NoError(t, err)

	res, err := Compute(context.Background(), Parameter{}, data)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Quantiles.Cols())
	assert.Equal(t, 2.5, res.Quantiles.Get(0, 0))
}

func TestCompute_SparseInput(t *testing.T) {
	dense, err := table.FromRows([][]float64{{0, 1}, {2, 0}, {0, 3}})
	require.NoError(t, err)
	res, err := Compute(context.Background(), Parameter{}, table.CSRFromDense(dense))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, table.Column(res.Quantiles, 0))
}

func TestInput_Check(t *testing.T) {
	data := table.MustNew(3, 2, table.Float)

	err := (&Input{Data: data}).Check(Parameter{QuantileOrders: orders(t, 0.5, 1.5)})
	assert.ErrorIs(t, err, status.ErrIncorrectParameter)

	err = (&Input{Data: data}).Check(Parameter{QuantileOrders: table.MustNew(2, 2, table.Float)})
	assert.ErrorIs(t, err, status.ErrIncorrectNumberOfRows)

	err = (&Input{}).Check(Parameter{})
	assert.ErrorIs(t, err, status.ErrNullInputNumericTable)

	err = (&Input{Data: table.MustNew(0, 2, table.Float)}).Check(Parameter{})
	assert.ErrorIs(t, err, status.ErrEmptyInputNumericTable)
}

func TestBatch_ReusesResult(t *testing.T) {
	data, err := table.FromRows([][]float64{{1}, {2}, {3}})
	require.NoError(t, err)

	alloc := algorithm.NewAllocator(resource.NewController(resource.Config{}))
	b := NewBatch(Parameter{}, data)
	b.Allocator = alloc
	require.NoError(t, b.Compute(context.Background()))
	first := b.Result().Quantiles

	require.NoError(t, b.Compute(context.Background()))
	assert.Same(t, first, b.Result().Quantiles)
	assert.EqualValues(t, 1, alloc.Count())
}

func TestResult_ArchiveRoundTrip(t *testing.T) {
	data, err := table.FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	res, err := Compute(context.Background(), Parameter{QuantileOrders: orders(t, 0.1, 0.9)}, data)
	require.NoError(t, err)

	reg := archive.NewRegistry()
	require.NoError(t, Register(reg))
	raw, err := archive.Encode(res)
	require.NoError(t, err)
	obj, err := reg.Decode(raw)
	require.NoError(t, err)
	assert.True(t, table.Equal(res.Quantiles, obj.(*Result).Quantiles))
}
