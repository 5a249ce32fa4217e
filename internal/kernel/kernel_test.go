package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredL2Sparse(t *testing.T) {
	center := []float64{1, 2, 3}
	dense := []float64{0, 4, 1}
	got := SquaredL2Sparse([]float64{4, 1}, []int{1, 2}, center, SquaredNorm(center))
	assert.InDelta(t, SquaredL2(dense, center), got, 1e-12)
}

func TestNearest(t *testing.T) {
	idx, d := Nearest([]float64{0, 0}, [][]float64{{3, 4}, {1, 1}})
	assert.Equal(t, 1, idx)
	assert.Equal(t, 2.0, d)

	idx, d = Nearest([]float64{0}, nil)
	assert.Equal(t, -1, idx)
	assert.True(t, math.IsInf(d, 1))
}

func TestWeightedIndex(t *testing.T) {
	w := []float64{0, 1, 0, 3}
	assert.Equal(t, 1, WeightedIndex(0, w))
	assert.Equal(t, 1, WeightedIndex(0.24, w))
	assert.Equal(t, 3, WeightedIndex(0.25, w))
	assert.Equal(t, 3, WeightedIndex(0.999999, w))
	assert.Equal(t, -1, WeightedIndex(0.5, []float64{0, 0}))
	assert.Equal(t, 3, CumulativeIndex(10, w))
}

func TestSymmetricEigen(t *testing.T) {
	a := []float64{
		4, 1, 0,
		1, 3, 0,
		0, 0, 1,
	}
	values, vectors, err := SymmetricEigen(a, 3)
	require.NoError(t, err)

	want0 := (7 + math.Sqrt(5)) / 2
	want1 := (7 - math.Sqrt(5)) / 2
	assert.InDelta(t, want0, values[0], 1e-9)
	assert.InDelta(t, want1, values[1], 1e-9)
	assert.InDelta(t, 1.0, values[2], 1e-9)

	// A·v = λ·v for every row vector
	for r := 0; r < 3; r++ {
		v := vectors[r*3 : r*3+3]
		for i := 0; i < 3; i++ {
			var av float64
			for k := 0; k < 3; k++ {
				av += a[i*3+k] * v[k]
			}
			assert.InDelta(t, values[r]*v[i], av, 1e-9)
		}
		assert.InDelta(t, 1.0, SquaredNorm(v), 1e-9)
	}
}

func TestCholesky(t *testing.T) {
	a := []float64{
		4, 2,
		2, 3,
	}
	l := append([]float64(nil), a...)
	require.NoError(t, Cholesky(l, 2))
	assert.InDelta(t, 2.0, l[0], 1e-12)
	assert.Equal(t, 0.0, l[1])

	b := []float64{2, 1}
	CholeskySolve(l, 2, b)
	// 4x + 2y = 2, 2x + 3y = 1
	assert.InDelta(t, 0.5, b[0], 1e-12)
	assert.InDelta(t, 0.0, b[1], 1e-12)

	assert.ErrorIs(t, Cholesky([]float64{1, 2, 2, 1}, 2), ErrNotPositiveDefinite)
}

func TestCholesky_RankDeficient(t *testing.T) {
	// Gram matrix of the columns 1, x and 2x for x = 0..4.
	a := []float64{
		5, 10, 20,
		10, 30, 60,
		20, 60, 120,
	}
	assert.ErrorIs(t, Cholesky(a, 3), ErrNotPositiveDefinite)
}
