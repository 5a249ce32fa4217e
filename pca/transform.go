package pca

import (
	"math"

	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Transform projects the standardized rows of data onto the components of
// res. The scores are n×nComponents.
func Transform(res *Result, data table.Table) (*table.Dense, error) {
	s := status.New()
	if res == nil || res.Eigenvectors == nil || res.Means == nil || res.Variances == nil {
		return nil, s.Add(status.ErrNullInput, "result").Err()
	}
	p := res.Eigenvectors.Cols()
	if !table.CheckInto(s, data, "data", table.Expect{Cols: p}) {
		return nil, s.Err()
	}
	k := res.Eigenvectors.Rows()
	scale := make([]float64, p)
	for j, v := range res.Variances.Data() {
		if v > 0 {
			scale[j] = 1 / math.Sqrt(v)
		}
	}

	out := table.MustNew(data.Rows(), k, table.Float)
	z := make([]float64, p)
	var row []float64
	for i := range data.Rows() {
		row = data.Row(i, row)
		for j, x := range row {
			z[j] = (x - res.Means.Data()[j]) * scale[j]
		}
		dst := out.RawRow(i)
		for c := range k {
			var dot float64
			for j, v := range res.Eigenvectors.RawRow(c) {
				dot += v * z[j]
			}
			dst[c] = dot
		}
	}
	return out, nil
}
