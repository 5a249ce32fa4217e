package kernel

// WeightedIndex picks an index with probability proportional to its weight
// given a uniform u in [0, 1). It returns -1 when every weight is zero.
func WeightedIndex(u float64, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}
	return CumulativeIndex(u*total, weights)
}

// CumulativeIndex returns the first index whose running weight sum exceeds
// target. Zero-weight entries are never selected.
func CumulativeIndex(target float64, weights []float64) int {
	last := -1
	var acc float64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return i
		}
	}
	// rounding may leave target just above the final sum
	return last
}
