package archive

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/stepwise/table"
)

// Table encodings.
const (
	tableNil    byte = 0
	tableDense  byte = 1
	tablePacked byte = 2
	tableCSR    byte = 3
)

// maxLength bounds decoded slice lengths to reject corrupt input early.
const maxLength = 1 << 34

// Writer appends little-endian fields. The first failure is sticky.
type Writer struct {
	buf []byte
	err error
}

// NewWriter returns an empty writer.
func NewWriter() *Writer { return &Writer{buf: make([]byte, 0, 256)} }

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte { return w.buf }

// Err returns the first recorded failure.
func (w *Writer) Err() error { return w.err }

// Fail records err unless a failure is already recorded.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Uint32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *Writer) Uint64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) Int(v int) { w.Uint64(uint64(int64(v))) }

func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (w *Writer) Text(s string) {
	w.Int(len(s))
	w.buf = append(w.buf, s...)
}

func (w *Writer) Float64s(v []float64) {
	w.Int(len(v))
	for _, x := range v {
		w.Float64(x)
	}
}

func (w *Writer) Ints(v []int) {
	w.Int(len(v))
	for _, x := range v {
		w.Int(x)
	}
}

func (w *Writer) Blob(b []byte) {
	w.Int(len(b))
	w.buf = append(w.buf, b...)
}

// Table writes a nullable table of any layout.
func (w *Writer) Table(t table.Table) {
	if table.IsNil(t) {
		w.Uint8(tableNil)
		return
	}
	switch v := t.(type) {
	case *table.Dense:
		w.Uint8(tableDense)
		w.Uint8(uint8(v.Kind()))
		w.Int(v.Rows())
		w.Int(v.Cols())
		for _, x := range v.Data() {
			w.Float64(x)
		}
	case *table.Packed:
		w.Uint8(tablePacked)
		w.Uint8(uint8(v.Kind()))
		w.Uint8(uint8(v.Layout()))
		w.Int(v.Rows())
		w.Float64s(v.Data())
	case *table.CSR:
		w.Uint8(tableCSR)
		values, cols, offsets := v.Arrays()
		w.Int(v.Rows())
		w.Int(v.Cols())
		w.Float64s(values)
		w.Ints(cols)
		w.Ints(offsets)
	default:
		// foreign implementations are stored densely
		w.Table(table.ToDense(t))
	}
}

// Tables writes a nullable table collection.
func (w *Writer) Tables(ts []table.Table) {
	if ts == nil {
		w.Int(-1)
		return
	}
	w.Int(len(ts))
	for _, t := range ts {
		w.Table(t)
	}
}

// Object writes a nested object inline, prefixed by its tag.
func (w *Writer) Object(obj Serializable) {
	if obj == nil {
		w.Bool(false)
		return
	}
	w.Bool(true)
	w.Uint32(uint32(obj.ArchiveTag()))
	obj.MarshalArchive(w)
}

// Reader consumes fields written by Writer. The first failure is sticky and
// every later read returns zero values.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader reads from buf.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Err returns the first recorded failure.
func (r *Reader) Err() error { return r.err }

// Fail records err unless a failure is already recorded.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrCorrupt, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) Int() int { return int(int64(r.Uint64())) }

func (r *Reader) Float64() float64 { return math.Float64frombits(r.Uint64()) }

func (r *Reader) Bool() bool { return r.Uint8() != 0 }

func (r *Reader) length() int {
	n := r.Int()
	if r.err == nil && (n < 0 || n > maxLength) {
		r.Fail(fmt.Errorf("%w: length %d", ErrCorrupt, n))
		return 0
	}
	return n
}

func (r *Reader) Text() string {
	n := r.length()
	return string(r.take(n))
}

func (r *Reader) Float64s() []float64 {
	n := r.length()
	if r.err != nil {
		return nil
	}
	if n*8 > r.Remaining() {
		r.Fail(fmt.Errorf("%w: %d floats exceed payload", ErrCorrupt, n))
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Float64()
	}
	return out
}

func (r *Reader) Ints() []int {
	n := r.length()
	if r.err != nil {
		return nil
	}
	if n*8 > r.Remaining() {
		r.Fail(fmt.Errorf("%w: %d ints exceed payload", ErrCorrupt, n))
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = r.Int()
	}
	return out
}

func (r *Reader) Blob() []byte {
	n := r.length()
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Table reads a nullable table. An absent table is returned as a nil interface.
func (r *Reader) Table() table.Table {
	switch r.Uint8() {
	case tableNil:
		return nil
	case tableDense:
		kind := table.Kind(r.Uint8())
		rows, cols := r.length(), r.length()
		if r.err != nil {
			return nil
		}
		if cols != 0 && rows > r.Remaining()/8/cols {
			r.Fail(fmt.Errorf("%w: %dx%d table exceeds payload", ErrCorrupt, rows, cols))
			return nil
		}
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = r.Float64()
		}
		d, err := table.FromData(rows, cols, kind, data)
		if err != nil {
			r.Fail(fmt.Errorf("%w: %w", ErrCorrupt, err))
			return nil
		}
		return d
	case tablePacked:
		kind := table.Kind(r.Uint8())
		layout := table.Layout(r.Uint8())
		n := r.length()
		data := r.Float64s()
		if r.err != nil {
			return nil
		}
		if n > len(data) || n > 1<<31 || n*(n+1)/2 != len(data) {
			r.Fail(fmt.Errorf("%w: packed order %d with %d values", ErrCorrupt, n, len(data)))
			return nil
		}
		p, err := table.NewPacked(n, layout, kind)
		if err != nil || len(p.Data()) != len(data) {
			r.Fail(fmt.Errorf("%w: packed table", ErrCorrupt))
			return nil
		}
		copy(p.Data(), data)
		return p
	case tableCSR:
		rows, cols := r.length(), r.length()
		values := r.Float64s()
		colIdx := r.Ints()
		offsets := r.Ints()
		if r.err != nil {
			return nil
		}
		c, err := table.NewCSR(rows, cols, values, colIdx, offsets)
		if err != nil {
			r.Fail(fmt.Errorf("%w: %w", ErrCorrupt, err))
			return nil
		}
		return c
	default:
		r.Fail(fmt.Errorf("%w: unknown table encoding", ErrCorrupt))
		return nil
	}
}

// Dense reads a nullable table and requires it to be dense.
func (r *Reader) Dense() *table.Dense {
	t := r.Table()
	if t == nil {
		return nil
	}
	d, ok := t.(*table.Dense)
	if !ok {
		r.Fail(fmt.Errorf("%w: expected dense table, got %s", ErrCorrupt, t.Layout()))
		return nil
	}
	return d
}

// Tables reads a nullable table collection.
func (r *Reader) Tables() []table.Table {
	n := r.Int()
	if r.err != nil || n < 0 {
		return nil
	}
	if n > r.Remaining() {
		r.Fail(fmt.Errorf("%w: %d tables exceed payload", ErrCorrupt, n))
		return nil
	}
	out := make([]table.Table, n)
	for i := range out {
		out[i] = r.Table()
	}
	return out
}

// Object reads a nested object into dst. It reports whether one was present.
func (r *Reader) Object(dst Serializable) bool {
	if !r.Bool() {
		return false
	}
	tag := Tag(r.Uint32())
	if r.err != nil {
		return false
	}
	if tag != dst.ArchiveTag() {
		r.Fail(fmt.Errorf("%w: nested %s, target %s", ErrTagMismatch, tag, dst.ArchiveTag()))
		return false
	}
	dst.UnmarshalArchive(r)
	return r.err == nil
}
