package table

import "fmt"

// CSR is a compressed sparse row table with zero-based indexes.
type CSR struct {
	rows, cols int
	values     []float64
	colIndices []int
	rowOffsets []int
}

// NewCSR validates and wraps CSR arrays. rowOffsets has rows+1 entries and
// column indexes are strictly increasing within a row.
func NewCSR(rows, cols int, values []float64, colIndices, rowOffsets []int) (*CSR, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}
	if len(rowOffsets) != rows+1 {
		return nil, fmt.Errorf("%w: %d row offsets for %d rows", ErrInvalidCSR, len(rowOffsets), rows)
	}
	if len(values) != len(colIndices) {
		return nil, fmt.Errorf("%w: %d values, %d column indexes", ErrInvalidCSR, len(values), len(colIndices))
	}
	if rowOffsets[0] != 0 || rowOffsets[rows] != len(values) {
		return nil, fmt.Errorf("%w: row offsets must span [0,%d]", ErrInvalidCSR, len(values))
	}
	for i := 0; i < rows; i++ {
		lo, hi := rowOffsets[i], rowOffsets[i+1]
		if hi < lo {
			return nil, fmt.Errorf("%w: row %d offsets decrease", ErrInvalidCSR, i)
		}
		prev := -1
		for k := lo; k < hi; k++ {
			c := colIndices[k]
			if c <= prev || c >= cols {
				return nil, fmt.Errorf("%w: row %d column index %d", ErrInvalidCSR, i, c)
			}
			prev = c
		}
	}
	return &CSR{rows: rows, cols: cols, values: values, colIndices: colIndices, rowOffsets: rowOffsets}, nil
}

// CSRFromDense converts a dense table, dropping zeros.
func CSRFromDense(t Table) *CSR {
	c := &CSR{rows: t.Rows(), cols: t.Cols(), rowOffsets: make([]int, t.Rows()+1)}
	var row []float64
	for i := 0; i < t.Rows(); i++ {
		row = t.Row(i, row)
		for j, v := range row {
			if v != 0 {
				c.values = append(c.values, v)
				c.colIndices = append(c.colIndices, j)
			}
		}
		c.rowOffsets[i+1] = len(c.values)
	}
	return c
}

func (c *CSR) Rows() int      { return c.rows }
func (c *CSR) Cols() int      { return c.cols }
func (c *CSR) Layout() Layout { return LayoutCSR }
func (c *CSR) Kind() Kind     { return Float }

// NNZ returns the number of stored values.
func (c *CSR) NNZ() int { return len(c.values) }

// Arrays returns the backing arrays.
func (c *CSR) Arrays() (values []float64, colIndices, rowOffsets []int) {
	return c.values, c.colIndices, c.rowOffsets
}

// SparseRow returns the stored values and column indexes of row i.
func (c *CSR) SparseRow(i int) ([]float64, []int) {
	lo, hi := c.rowOffsets[i], c.rowOffsets[i+1]
	return c.values[lo:hi], c.colIndices[lo:hi]
}

func (c *CSR) Row(i int, dst []float64) []float64 {
	dst = growRow(dst, c.cols)
	for j := range dst {
		dst[j] = 0
	}
	vals, idx := c.SparseRow(i)
	for k, j := range idx {
		dst[j] = vals[k]
	}
	return dst
}
