package table

import (
	"fmt"
	"strings"
)

// Dense is a row-major table.
type Dense struct {
	rows, cols int
	kind       Kind
	data       []float64
}

// New allocates a zeroed rows×cols dense table.
func New(rows, cols int, kind Kind) (*Dense, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}
	return &Dense{rows: rows, cols: cols, kind: kind, data: make([]float64, rows*cols)}, nil
}

// MustNew is New for shapes known to be valid.
func MustNew(rows, cols int, kind Kind) *Dense {
	d, err := New(rows, cols, kind)
	if err != nil {
		panic(err)
	}
	return d
}

// NewFloat allocates a float table.
func NewFloat(rows, cols int) (*Dense, error) { return New(rows, cols, Float) }

// NewInt allocates an int table.
func NewInt(rows, cols int) (*Dense, error) { return New(rows, cols, Int) }

// FromRows builds a float table from a rectangular slice of rows.
func FromRows(rows [][]float64) (*Dense, error) {
	if len(rows) == 0 {
		return New(0, 0, Float)
	}
	cols := len(rows[0])
	d, err := New(len(rows), cols, Float)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrBadShape, i, len(r), cols)
		}
		copy(d.data[i*cols:], r)
	}
	return d, nil
}

// FromData wraps data (not copied) as a rows×cols table.
func FromData(rows, cols int, kind Kind, data []float64) (*Dense, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %dx%d with %d values", ErrBadShape, rows, cols, len(data))
	}
	return &Dense{rows: rows, cols: cols, kind: kind, data: data}, nil
}

// Scalar returns a 1×1 table holding v.
func Scalar(v float64, kind Kind) *Dense {
	return &Dense{rows: 1, cols: 1, kind: kind, data: []float64{v}}
}

func (d *Dense) Rows() int      { return d.rows }
func (d *Dense) Cols() int      { return d.cols }
func (d *Dense) Layout() Layout { return LayoutDense }
func (d *Dense) Kind() Kind     { return d.kind }

// Data returns the backing slice.
func (d *Dense) Data() []float64 { return d.data }

// RawRow returns row i aliasing the backing slice.
func (d *Dense) RawRow(i int) []float64 {
	return d.data[i*d.cols : (i+1)*d.cols : (i+1)*d.cols]
}

func (d *Dense) Row(i int, dst []float64) []float64 {
	dst = growRow(dst, d.cols)
	copy(dst, d.data[i*d.cols:(i+1)*d.cols])
	return dst
}

// At returns the value at (i, j).
func (d *Dense) At(i, j int) (float64, error) {
	if i < 0 || j < 0 || i >= d.rows || j >= d.cols {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, i, j, d.rows, d.cols)
	}
	return d.data[i*d.cols+j], nil
}

// Set stores v at (i, j).
func (d *Dense) Set(i, j int, v float64) error {
	if i < 0 || j < 0 || i >= d.rows || j >= d.cols {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, i, j, d.rows, d.cols)
	}
	d.data[i*d.cols+j] = v
	return nil
}

// Get is At without bounds reporting; it panics on a bad index.
func (d *Dense) Get(i, j int) float64 { return d.data[i*d.cols+j] }

// Put is Set without bounds reporting; it panics on a bad index.
func (d *Dense) Put(i, j int, v float64) { d.data[i*d.cols+j] = v }

// Fill sets every cell to v.
func (d *Dense) Fill(v float64) {
	for i := range d.data {
		d.data[i] = v
	}
}

// Clone returns a deep copy.
func (d *Dense) Clone() *Dense {
	data := make([]float64, len(d.data))
	copy(data, d.data)
	return &Dense{rows: d.rows, cols: d.cols, kind: d.kind, data: data}
}

// SliceRows returns a copy of rows [from, to).
func (d *Dense) SliceRows(from, to int) *Dense {
	out := MustNew(to-from, d.cols, d.kind)
	copy(out.data, d.data[from*d.cols:to*d.cols])
	return out
}

// Resize changes the row count in place, keeping the leading rows.
func (d *Dense) Resize(rows int) {
	n := rows * d.cols
	if n <= cap(d.data) {
		old := len(d.data)
		d.data = d.data[:n]
		for i := old; i < n; i++ {
			d.data[i] = 0
		}
	} else {
		data := make([]float64, n)
		copy(data, d.data)
		d.data = data
	}
	d.rows = rows
}

func (d *Dense) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dense(%dx%d,%s)", d.rows, d.cols, d.kind)
	for i := 0; i < d.rows && i < 8; i++ {
		fmt.Fprintf(&b, "\n  %v", d.data[i*d.cols:(i+1)*d.cols])
	}
	if d.rows > 8 {
		b.WriteString("\n  ...")
	}
	return b.String()
}

// Column returns a copy of column j of t.
func Column(t Table, j int) []float64 {
	out := make([]float64, t.Rows())
	var row []float64
	for i := range out {
		row = t.Row(i, row)
		out[i] = row[j]
	}
	return out
}

// VStack concatenates the rows of tables with equal column counts.
func VStack(kind Kind, tables ...Table) (*Dense, error) {
	rows, cols := 0, -1
	for _, t := range tables {
		if t == nil || t.Rows() == 0 {
			continue
		}
		if cols >= 0 && t.Cols() != cols {
			return nil, fmt.Errorf("%w: cannot stack %d and %d columns", ErrBadShape, cols, t.Cols())
		}
		cols = t.Cols()
		rows += t.Rows()
	}
	if cols < 0 {
		cols = 0
	}
	out := MustNew(rows, cols, kind)
	r := 0
	for _, t := range tables {
		if t == nil {
			continue
		}
		for i := 0; i < t.Rows(); i++ {
			t.Row(i, out.RawRow(r))
			r++
		}
	}
	return out, nil
}
