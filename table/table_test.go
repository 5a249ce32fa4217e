package table

import (
	"testing"

	"github.com/hupe1980/stepwise/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDense_Basics(t *testing.T) {
	d, err := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 2, d.Rows())
	assert.Equal(t, 3, d.Cols())
	assert.Equal(t, LayoutDense, d.Layout())

	v, err := d.At(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	_, err = d.At(2, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	require.NoError(t, d.Set(0, 0, 9))
	assert.Equal(t, []float64{9, 2, 3}, d.Row(0, nil))

	c := d.Clone()
	c.Put(0, 0, 1)
	assert.Equal(t, 9.0, d.Get(0, 0))

	_, err = FromRows([][]float64{{1}, {1, 2}})
	assert.ErrorIs(t, err, ErrBadShape)

	_, err = New(-1, 2, Float)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestDense_Resize(t *testing.T) {
	d := MustNew(3, 2, Float)
	d.Fill(1)
	d.Resize(1)
	assert.Equal(t, 1, d.Rows())
	d.Resize(2)
	assert.Equal(t, []float64{0, 0}, d.Row(1, nil))
	d.Resize(5)
	assert.Len(t, d.Data(), 10)
}

func TestPacked_SymmetricAndTriangular(t *testing.T) {
	for _, layout := range []Layout{LayoutUpperPackedSymmetric, LayoutLowerPackedSymmetric} {
		p, err := NewPacked(3, layout, Float)
		require.NoError(t, err)
		require.NoError(t, p.Set(0, 2, 7))
		v, err := p.At(2, 0)
		require.NoError(t, err)
		assert.Equal(t, 7.0, v, layout.String())
		assert.Len(t, p.Data(), 6)
	}

	tri, err := NewPacked(3, LayoutUpperPackedTriangular, Float)
	require.NoError(t, err)
	require.NoError(t, tri.Set(0, 1, 4))
	assert.Error(t, tri.Set(1, 0, 4))
	assert.Equal(t, []float64{0, 0, 0}, tri.Row(1, nil))
	assert.Equal(t, []float64{0, 4, 0}, tri.Row(0, nil))

	_, err = NewPacked(3, LayoutDense, Float)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestCSR(t *testing.T) {
	c, err := NewCSR(2, 3, []float64{1, 2, 3}, []int{0, 2, 1}, []int{0, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 2}, c.Row(0, nil))
	assert.Equal(t, []float64{0, 3, 0}, c.Row(1, nil))
	assert.Equal(t, 3, c.NNZ())

	_, err = NewCSR(1, 3, []float64{1, 2}, []int{2, 1}, []int{0, 2})
	assert.ErrorIs(t, err, ErrInvalidCSR)

	d, _ := FromRows([][]float64{{1, 0, 2}, {0, 3, 0}})
	assert.True(t, Equal(ToDense(CSRFromDense(d)), d))
}

func TestCheck(t *testing.T) {
	d := MustNew(4, 2, Float)

	assert.NoError(t, Check(d, "data", Expect{Cols: 2, Rows: 4}))

	err := Check(nil, "data", Expect{})
	assert.ErrorIs(t, err, status.ErrNullInputNumericTable)

	var typedNil *Dense
	assert.ErrorIs(t, Check(typedNil, "data", Expect{}), status.ErrNullInputNumericTable)

	err = Check(d, "labels", Expect{Cols: 1, Rows: 3})
	st := status.From(err)
	require.Equal(t, 2, st.Len())
	assert.True(t, st.Has(status.ErrIncorrectNumberOfColumns))
	assert.True(t, st.Has(status.ErrIncorrectNumberOfRows))

	empty := MustNew(0, 2, Float)
	assert.ErrorIs(t, Check(empty, "data", Expect{}), status.ErrEmptyInputNumericTable)
	assert.NoError(t, Check(empty, "data", Expect{AllowEmpty: true}))

	p, _ := NewPacked(2, LayoutLowerPackedTriangular, Float)
	err = Check(p, "labels", Expect{UnexpectedLayouts: PackedLayouts})
	assert.ErrorIs(t, err, status.ErrIncorrectTypeOfInputNumericTable)
}

func TestVStack(t *testing.T) {
	a, _ := FromRows([][]float64{{1, 2}})
	b, _ := FromRows([][]float64{{3, 4}, {5, 6}})
	s, err := VStack(Float, a, nil, b)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Rows())
	assert.Equal(t, []float64{5, 6}, s.Row(2, nil))

	c := MustNew(1, 3, Float)
	_, err = VStack(Float, a, c)
	assert.ErrorIs(t, err, ErrBadShape)
}
