package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/stepwise/internal/hash"
)

var (
	// ErrCorrupt is returned for archives with a bad header, a truncated
	// payload or malformed content.
	ErrCorrupt = errors.New("archive: corrupt data")

	// ErrChecksum is returned when the payload checksum does not match.
	ErrChecksum = errors.New("archive: checksum mismatch")

	// ErrUnknownTag is returned when decoding a tag that was never registered.
	ErrUnknownTag = errors.New("archive: unknown tag")

	// ErrDuplicateTag is returned when a tag is registered twice.
	ErrDuplicateTag = errors.New("archive: duplicate tag")

	// ErrRegistrySealed is returned when registering into a sealed registry.
	ErrRegistrySealed = errors.New("archive: registry is sealed")

	// ErrTagMismatch is returned by DecodeInto when the archive holds another type.
	ErrTagMismatch = errors.New("archive: tag mismatch")

	// ErrUnknownCompression is returned for unsupported compression values.
	ErrUnknownCompression = errors.New("archive: unknown compression")
)

// Tag identifies a serializable type.
type Tag uint32

func (t Tag) String() string { return fmt.Sprintf("0x%08x", uint32(t)) }

// Serializable is implemented by every partial result, result and model.
//
// MarshalArchive and UnmarshalArchive report failures through the sticky
// error of the Writer/Reader.
type Serializable interface {
	ArchiveTag() Tag
	MarshalArchive(w *Writer)
	UnmarshalArchive(r *Reader)
}

const (
	magic         = "STWA"
	formatVersion = uint16(1)
	headerSize    = 32
)

// Header is the decoded archive envelope.
type Header struct {
	Version     uint16
	Compression Compression
	Tag         Tag
	RawLength   uint64
	Length      uint64
	Checksum    uint32
}

type encodeOptions struct {
	compression Compression
}

// Option configures Encode.
type Option func(*encodeOptions)

// WithCompression selects the payload compression.
func WithCompression(c Compression) Option {
	return func(o *encodeOptions) { o.compression = c }
}

// Encode serializes obj into a new archive.
func Encode(obj Serializable, optFns ...Option) ([]byte, error) {
	if obj == nil {
		return nil, errors.New("archive: nil object")
	}
	opts := encodeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	w := NewWriter()
	obj.MarshalArchive(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("archive: marshal %s: %w", obj.ArchiveTag(), err)
	}
	raw := w.Bytes()

	payload, used, err := compress(opts.compression, raw)
	if err != nil {
		return nil, fmt.Errorf("archive: compress %s: %w", opts.compression, err)
	}

	out := make([]byte, headerSize, headerSize+len(payload))
	copy(out[0:4], magic)
	binary.LittleEndian.PutUint16(out[4:], formatVersion)
	out[6] = byte(used)
	out[7] = 0
	binary.LittleEndian.PutUint32(out[8:], uint32(obj.ArchiveTag()))
	binary.LittleEndian.PutUint64(out[12:], uint64(len(raw)))
	binary.LittleEndian.PutUint64(out[20:], uint64(len(payload)))
	binary.LittleEndian.PutUint32(out[28:], hash.CRC32C(payload))
	return append(out, payload...), nil
}

// Peek decodes and validates the envelope without touching the payload.
func Peek(data []byte) (Header, error) {
	if len(data) < headerSize || string(data[0:4]) != magic {
		return Header{}, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(data[4:]),
		Compression: Compression(data[6]),
		Tag:         Tag(binary.LittleEndian.Uint32(data[8:])),
		RawLength:   binary.LittleEndian.Uint64(data[12:]),
		Length:      binary.LittleEndian.Uint64(data[20:]),
		Checksum:    binary.LittleEndian.Uint32(data[28:]),
	}
	if h.Version != formatVersion {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	if uint64(len(data)-headerSize) != h.Length {
		return Header{}, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(data)-headerSize, h.Length)
	}
	if h.RawLength > maxLength {
		return Header{}, fmt.Errorf("%w: raw length %d", ErrCorrupt, h.RawLength)
	}
	if h.Compression == CompressionNone && h.RawLength != h.Length {
		return Header{}, fmt.Errorf("%w: raw length %d of uncompressed payload with %d bytes", ErrCorrupt, h.RawLength, h.Length)
	}
	return h, nil
}

func payloadOf(data []byte) (Header, []byte, error) {
	h, err := Peek(data)
	if err != nil {
		return Header{}, nil, err
	}
	payload := data[headerSize:]
	if hash.CRC32C(payload) != h.Checksum {
		return Header{}, nil, ErrChecksum
	}
	raw, err := decompress(h.Compression, payload, int(h.RawLength))
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return h, raw, nil
}

// DecodeInto restores obj from data. The archive tag must match obj's tag.
func DecodeInto(data []byte, obj Serializable) error {
	h, raw, err := payloadOf(data)
	if err != nil {
		return err
	}
	if h.Tag != obj.ArchiveTag() {
		return fmt.Errorf("%w: archive holds %s, target is %s", ErrTagMismatch, h.Tag, obj.ArchiveTag())
	}
	r := NewReader(raw)
	obj.UnmarshalArchive(r)
	if err := r.Err(); err != nil {
		return fmt.Errorf("archive: unmarshal %s: %w", h.Tag, err)
	}
	return nil
}

// Factory creates an empty object ready for UnmarshalArchive.
type Factory func() Serializable

// Registry maps tags to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[Tag]Factory
	sealed    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Tag]Factory)}
}

// Register adds a factory for tag.
func (r *Registry) Register(tag Tag, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrRegistrySealed, tag)
	}
	if _, ok := r.factories[tag]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTag, tag)
	}
	r.factories[tag] = f
	return nil
}

// RegisterAll registers every factory, stopping at the first error.
func (r *Registry) RegisterAll(factories map[Tag]Factory) error {
	tags := make([]Tag, 0, len(factories))
	for tag := range factories {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	for _, tag := range tags {
		if err := r.Register(tag, factories[tag]); err != nil {
			return err
		}
	}
	return nil
}

// Seal forbids further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the factory for tag.
func (r *Registry) Lookup(tag Tag) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[tag]
	return f, ok
}

// Tags returns the registered tags in ascending order.
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tag, 0, len(r.factories))
	for tag := range r.factories {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Decode reconstructs the object held by data.
func (r *Registry) Decode(data []byte) (Serializable, error) {
	h, err := Peek(data)
	if err != nil {
		return nil, err
	}
	f, ok := r.Lookup(h.Tag)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTag, h.Tag)
	}
	obj := f()
	if err := DecodeInto(data, obj); err != nil {
		return nil, err
	}
	return obj, nil
}
