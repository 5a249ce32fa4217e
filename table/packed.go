package table

import "fmt"

// Packed is an n×n symmetric or triangular matrix stored as n(n+1)/2 values.
type Packed struct {
	n      int
	layout Layout
	kind   Kind
	data   []float64
}

// NewPacked allocates a zeroed packed matrix with one of the packed layouts.
func NewPacked(n int, layout Layout, kind Kind) (*Packed, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: n=%d", ErrBadShape, n)
	}
	if !layout.IsPacked() {
		return nil, fmt.Errorf("%w: %s is not a packed layout", ErrBadShape, layout)
	}
	return &Packed{n: n, layout: layout, kind: kind, data: make([]float64, n*(n+1)/2)}, nil
}

func (p *Packed) Rows() int      { return p.n }
func (p *Packed) Cols() int      { return p.n }
func (p *Packed) Layout() Layout { return p.layout }
func (p *Packed) Kind() Kind     { return p.kind }

// Data returns the packed backing slice.
func (p *Packed) Data() []float64 { return p.data }

func (p *Packed) upper() bool {
	return p.layout == LayoutUpperPackedSymmetric || p.layout == LayoutUpperPackedTriangular
}

func (p *Packed) symmetric() bool {
	return p.layout == LayoutUpperPackedSymmetric || p.layout == LayoutLowerPackedSymmetric
}

// index maps (i, j) to the packed offset; ok is false for the structurally
// zero half of a triangular matrix.
func (p *Packed) index(i, j int) (int, bool) {
	if p.upper() {
		if i > j {
			if !p.symmetric() {
				return 0, false
			}
			i, j = j, i
		}
		// row i of the upper triangle starts after i rows of decreasing length
		return i*p.n - i*(i-1)/2 + (j - i), true
	}
	if j > i {
		if !p.symmetric() {
			return 0, false
		}
		i, j = j, i
	}
	return i*(i+1)/2 + j, true
}

// At returns the logical value at (i, j).
func (p *Packed) At(i, j int) (float64, error) {
	if i < 0 || j < 0 || i >= p.n || j >= p.n {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, i, j, p.n, p.n)
	}
	k, ok := p.index(i, j)
	if !ok {
		return 0, nil
	}
	return p.data[k], nil
}

// Set stores v at (i, j). Writing the zero half of a triangular matrix is an error.
func (p *Packed) Set(i, j int, v float64) error {
	if i < 0 || j < 0 || i >= p.n || j >= p.n {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, i, j, p.n, p.n)
	}
	k, ok := p.index(i, j)
	if !ok {
		return fmt.Errorf("%w: (%d,%d) is outside the stored triangle", ErrOutOfRange, i, j)
	}
	p.data[k] = v
	return nil
}

func (p *Packed) Row(i int, dst []float64) []float64 {
	dst = growRow(dst, p.n)
	for j := 0; j < p.n; j++ {
		if k, ok := p.index(i, j); ok {
			dst[j] = p.data[k]
		} else {
			dst[j] = 0
		}
	}
	return dst
}
