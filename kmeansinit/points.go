package kmeansinit

import (
	"github.com/hupe1980/stepwise/internal/kernel"
	"github.com/hupe1980/stepwise/table"
)

// points gives the kernels uniform row access over dense or CSR data.
type points struct {
	t     table.Table
	dense *table.Dense
	csr   *table.CSR
	buf   []float64
}

func newPoints(t table.Table, m Method) *points {
	p := &points{t: t}
	if m.IsSparse() {
		p.csr, _ = t.(*table.CSR)
	}
	if p.csr == nil {
		p.dense, _ = t.(*table.Dense)
	}
	return p
}

func (p *points) rows() int { return p.t.Rows() }
func (p *points) cols() int { return p.t.Cols() }

// row returns row i in dense form. The slice is only valid until the next call.
func (p *points) row(i int) []float64 {
	if p.dense != nil {
		return p.dense.RawRow(i)
	}
	p.buf = p.t.Row(i, p.buf)
	return p.buf
}

// dist2 returns the squared distance of row i to center; norm is |center|².
func (p *points) dist2(i int, center []float64, norm float64) float64 {
	if p.csr != nil {
		values, cols := p.csr.SparseRow(i)
		return kernel.SquaredL2Sparse(values, cols, center, norm)
	}
	return kernel.SquaredL2(p.row(i), center)
}
