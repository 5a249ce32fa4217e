// Package table provides the numeric tables consumed and produced by every
// algorithm step.
//
// Tables are opaque to the protocol layer: a step only asks for the shape, the
// layout tag and the values of a row. Three storage forms exist:
//
//   - Dense: row-major, the layout of every table a step allocates itself
//   - Packed: n(n+1)/2 storage for symmetric or triangular square matrices
//   - CSR: compressed sparse rows, consumed by the CSR method variants
package table

import (
	"errors"
	"fmt"
)

var (
	// ErrBadShape is returned when a requested shape is negative.
	ErrBadShape = errors.New("table: invalid shape")

	// ErrOutOfRange is returned by At/Set for indexes outside the table.
	ErrOutOfRange = errors.New("table: index out of range")

	// ErrInvalidCSR is returned when CSR arrays are inconsistent.
	ErrInvalidCSR = errors.New("table: invalid csr structure")
)

// Layout tags the storage form of a table.
type Layout uint8

const (
	// LayoutDense is row-major dense storage.
	LayoutDense Layout = iota
	// LayoutCSR is compressed sparse row storage.
	LayoutCSR
	// LayoutUpperPackedSymmetric stores the upper triangle of a symmetric matrix.
	LayoutUpperPackedSymmetric
	// LayoutLowerPackedSymmetric stores the lower triangle of a symmetric matrix.
	LayoutLowerPackedSymmetric
	// LayoutUpperPackedTriangular stores an upper triangular matrix.
	LayoutUpperPackedTriangular
	// LayoutLowerPackedTriangular stores a lower triangular matrix.
	LayoutLowerPackedTriangular
)

func (l Layout) String() string {
	switch l {
	case LayoutDense:
		return "dense"
	case LayoutCSR:
		return "csr"
	case LayoutUpperPackedSymmetric:
		return "upper-packed-symmetric"
	case LayoutLowerPackedSymmetric:
		return "lower-packed-symmetric"
	case LayoutUpperPackedTriangular:
		return "upper-packed-triangular"
	case LayoutLowerPackedTriangular:
		return "lower-packed-triangular"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// Mask returns the single-bit mask of the layout.
func (l Layout) Mask() LayoutMask { return LayoutMask(1) << l }

// IsPacked reports whether the layout is one of the packed forms.
func (l Layout) IsPacked() bool { return PackedLayouts.Has(l) }

// LayoutMask is a set of layouts.
type LayoutMask uint32

// PackedLayouts is the set of packed symmetric and triangular layouts.
const PackedLayouts = LayoutMask(1)<<LayoutUpperPackedSymmetric |
	LayoutMask(1)<<LayoutLowerPackedSymmetric |
	LayoutMask(1)<<LayoutUpperPackedTriangular |
	LayoutMask(1)<<LayoutLowerPackedTriangular

// Has reports whether l is in the set.
func (m LayoutMask) Has(l Layout) bool { return m&l.Mask() != 0 }

// Kind is the declared cell type of a table.
type Kind uint8

const (
	// Float cells hold arbitrary float64 values.
	Float Kind = iota
	// Int cells hold integral values (indexes, counts).
	Int
)

func (k Kind) String() string {
	if k == Int {
		return "int"
	}
	return "float"
}

// Table is the read-only view every step consumes.
type Table interface {
	Rows() int
	Cols() int
	Layout() Layout
	Kind() Kind
	// Row writes row i in dense form into dst (grown when too short) and
	// returns it.
	Row(i int, dst []float64) []float64
}

func growRow(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}
	return dst[:n]
}

// Equal reports whether a and b have the same shape, layout, kind and values.
func Equal(a, b Table) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() || a.Layout() != b.Layout() || a.Kind() != b.Kind() {
		return false
	}
	var ra, rb []float64
	for i := 0; i < a.Rows(); i++ {
		ra = a.Row(i, ra)
		rb = b.Row(i, rb)
		for j := range ra {
			if ra[j] != rb[j] {
				return false
			}
		}
	}
	return true
}

// ToDense copies any table into a new dense table of the same kind.
func ToDense(t Table) *Dense {
	if d, ok := t.(*Dense); ok {
		return d.Clone()
	}
	out := MustNew(t.Rows(), t.Cols(), t.Kind())
	for i := 0; i < t.Rows(); i++ {
		t.Row(i, out.RawRow(i))
	}
	return out
}

// SizeInBytes estimates the memory held by a table of the given shape.
func SizeInBytes(rows, cols int) int64 {
	return int64(rows) * int64(cols) * 8
}
