package kernel

import "math"

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// SquaredL2Sparse returns the squared Euclidean distance between a sparse row
// (values at column indices) and a dense center. centerNorm must be the
// squared norm of center.
func SquaredL2Sparse(values []float64, cols []int, center []float64, centerNorm float64) float64 {
	// |x-c|² = |x|² - 2x·c + |c|²
	var xx, xc float64
	for k, v := range values {
		xx += v * v
		xc += v * center[cols[k]]
	}
	d := xx - 2*xc + centerNorm
	if d < 0 {
		return 0
	}
	return d
}

// SquaredNorm returns |v|².
func SquaredNorm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return sum
}

// Nearest returns the index of the center closest to x and the squared
// distance to it. It returns -1, +Inf when centers is empty.
func Nearest(x []float64, centers [][]float64) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for j, c := range centers {
		if d := SquaredL2(x, c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}
