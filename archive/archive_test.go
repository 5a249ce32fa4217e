package archive

import (
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/hupe1980/stepwise/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTag Tag = 0x7e570001

type sample struct {
	Name    string
	Count   int
	Weights []float64
	Data    table.Table
	Parts   []table.Table
	Child   *sample
}

func (s *sample) ArchiveTag() Tag { return sampleTag }

func (s *sample) MarshalArchive(w *Writer) {
	w.Text(s.Name)
	w.Int(s.Count)
	w.Float64s(s.Weights)
	w.Table(s.Data)
	w.Tables(s.Parts)
	if s.Child != nil {
		w.Object(s.Child)
	} else {
		w.Object(nil)
	}
}

func (s *sample) UnmarshalArchive(r *Reader) {
	s.Name = r.Text()
	s.Count = r.Int()
	s.Weights = r.Float64s()
	s.Data = r.Table()
	s.Parts = r.Tables()
	child := &sample{}
	if r.Object(child) {
		s.Child = child
	}
}

func newSample(t *testing.T) *sample {
	t.Helper()
	d, err := table.FromRows([][]float64{{1, 2, 3}, {4, 5, 6}, {1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	p, err := table.NewPacked(3, table.LayoutLowerPackedSymmetric, table.Float)
	require.NoError(t, err)
	require.NoError(t, p.Set(2, 1, 8))
	c, err := table.NewCSR(2, 3, []float64{1, 2, 3}, []int{0, 2, 1}, []int{0, 2, 3})
	require.NoError(t, err)

	return &sample{
		Name:    "partial",
		Count:   42,
		Weights: []float64{0.5, 0.25, 0.25},
		Data:    d,
		Parts:   []table.Table{p, nil, c},
		Child:   &sample{Name: "child", Count: -1},
	}
}

func TestEncodeDecodeInto(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZlib, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			in := newSample(t)
			data, err := Encode(in, WithCompression(c))
			require.NoError(t, err)

			out := &sample{}
			require.NoError(t, DecodeInto(data, out))

			assert.Equal(t, in.Name, out.Name)
			assert.Equal(t, in.Count, out.Count)
			assert.Equal(t, in.Weights, out.Weights)
			assert.True(t, table.Equal(in.Data, out.Data))
			require.Len(t, out.Parts, 3)
			assert.Equal(t, table.LayoutLowerPackedSymmetric, out.Parts[0].Layout())
			assert.Nil(t, out.Parts[1])
			assert.Equal(t, table.LayoutCSR, out.Parts[2].Layout())
			assert.True(t, table.Equal(in.Parts[2], out.Parts[2]))
			require.NotNil(t, out.Child)
			assert.Equal(t, "child", out.Child.Name)
			assert.Nil(t, out.Child.Data)
			assert.Nil(t, out.Child.Parts)
		})
	}
}

func TestEncode_CompressionChoice(t *testing.T) {
	big := &sample{Name: "big", Weights: make([]float64, 4096)}
	data, err := Encode(big, WithCompression(CompressionZstd))
	require.NoError(t, err)

	h, err := Peek(data)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, h.Compression)
	assert.Equal(t, sampleTag, h.Tag)
	assert.Less(t, h.Length, h.RawLength)

	noise := make([]byte, 64)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range noise {
		noise[i] = byte(rng.Uint32())
	}
	out, used, err := compress(CompressionLZ4, noise)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, used)
	assert.Equal(t, noise, out)
}

func TestDecode_Corruption(t *testing.T) {
	data, err := Encode(newSample(t))
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xff
	assert.ErrorIs(t, DecodeInto(flipped, &sample{}), ErrChecksum)

	assert.ErrorIs(t, DecodeInto(data[:len(data)-3], &sample{}), ErrCorrupt)
	assert.ErrorIs(t, DecodeInto([]byte("nope"), &sample{}), ErrCorrupt)

	badMagic := append([]byte(nil), data...)
	badMagic[0] = 'X'
	_, err = Peek(badMagic)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecode_CraftedRawLength(t *testing.T) {
	big := &sample{Name: "big", Weights: make([]float64, 4096)}
	for _, c := range []Compression{CompressionZlib, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := Encode(big, WithCompression(c))
			require.NoError(t, err)
			h, err := Peek(data)
			require.NoError(t, err)
			require.Equal(t, c, h.Compression)

			for _, raw := range []uint64{1 << 63, maxLength + 1, maxLength, h.RawLength + 1, h.RawLength - 1} {
				crafted := append([]byte(nil), data...)
				binary.LittleEndian.PutUint64(crafted[12:], raw)
				assert.ErrorIs(t, DecodeInto(crafted, &sample{}), ErrCorrupt, "raw length %d", raw)
			}
		})
	}

	plain, err := Encode(&sample{Name: "plain"})
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(plain[12:], 1<<20)
	_, err = Peek(plain)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReader_TableShapeBounds(t *testing.T) {
	w := NewWriter()
	w.Uint8(tableDense)
	w.Uint8(uint8(table.Float))
	w.Int(1 << 34)
	w.Int(1 << 27)
	r := NewReader(w.Bytes())
	assert.Nil(t, r.Table())
	assert.ErrorIs(t, r.Err(), ErrCorrupt)

	w = NewWriter()
	w.Uint8(tablePacked)
	w.Uint8(uint8(table.Float))
	w.Uint8(uint8(table.LayoutLowerPackedSymmetric))
	w.Int(1 << 33)
	w.Float64s([]float64{1, 2, 3})
	r = NewReader(w.Bytes())
	assert.Nil(t, r.Table())
	assert.ErrorIs(t, r.Err(), ErrCorrupt)

	w = NewWriter()
	w.Uint8(tablePacked)
	w.Uint8(uint8(table.Float))
	w.Uint8(uint8(table.LayoutLowerPackedSymmetric))
	w.Int(2)
	w.Float64s([]float64{1, 2, 3})
	r = NewReader(w.Bytes())
	p, ok := r.Table().(*table.Packed)
	require.NoError(t, r.Err())
	require.True(t, ok)
	assert.Equal(t, 2, p.Rows())
}

type other struct{ sample }

func (o *other) ArchiveTag() Tag { return sampleTag + 1 }

func TestDecodeInto_TagMismatch(t *testing.T) {
	data, err := Encode(&sample{Name: "a"})
	require.NoError(t, err)
	assert.ErrorIs(t, DecodeInto(data, &other{}), ErrTagMismatch)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sampleTag, func() Serializable { return &sample{} }))
	assert.ErrorIs(t, reg.Register(sampleTag, func() Serializable { return &sample{} }), ErrDuplicateTag)

	data, err := Encode(newSample(t), WithCompression(CompressionLZ4))
	require.NoError(t, err)

	obj, err := reg.Decode(data)
	require.NoError(t, err)
	s, ok := obj.(*sample)
	require.True(t, ok)
	assert.Equal(t, 42, s.Count)

	otherData, err := Encode(&other{})
	require.NoError(t, err)
	_, err = reg.Decode(otherData)
	assert.ErrorIs(t, err, ErrUnknownTag)

	reg.Seal()
	assert.True(t, reg.Sealed())
	assert.ErrorIs(t, reg.Register(sampleTag+1, func() Serializable { return &other{} }), ErrRegistrySealed)
	assert.Equal(t, []Tag{sampleTag}, reg.Tags())
}

func TestReader_StickyError(t *testing.T) {
	r := NewReader([]byte{1, 2})
	assert.Equal(t, 0, r.Int())
	require.ErrorIs(t, r.Err(), ErrCorrupt)
	assert.Equal(t, uint8(0), r.Uint8())
	assert.Nil(t, r.Float64s())
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, c)

	_, err = ParseCompression("lzo")
	assert.ErrorIs(t, err, ErrUnknownCompression)
}
