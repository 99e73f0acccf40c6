package bitreader

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrOutOfData is returned when a read asks for more bits than remain
	ErrOutOfData = errors.New("bitreader: out of data")

	// ErrNotImplemented is returned for wire encodings that have no decoder (plane)
	ErrNotImplemented = errors.New("bitreader: encoding not implemented")

	// ErrInvalidString is returned when a string length prefix is out of range
	ErrInvalidString = errors.New("bitreader: invalid string length")

	// ErrUnknownName is returned when a name reference points outside the name table
	ErrUnknownName = errors.New("bitreader: unknown name reference")

	// ErrInvalidPackedInt is returned when a packed integer does not terminate within 5 bytes
	ErrInvalidPackedInt = errors.New("bitreader: packed integer too long")
)

// MaxStringLength bounds the length prefix accepted by ReadString (characters)
const MaxStringLength = 1 << 20

// BitReader is a forward-only cursor over an immutable byte buffer.
//
// Bits are consumed least-significant-bit first within each byte. Every read
// either advances the position and returns a value, or fails with
// ErrOutOfData when fewer bits remain than requested. A failed primitive read
// (ReadBit, ReadBits and the fixed-width helpers built on them) leaves the
// position unchanged.
//
// A BitReader is not safe for concurrent use.
type BitReader struct {
	data  []byte
	pos   int // current bit position
	end   int // bit limit, exclusive
	names *NameTable
}

// Option configures a BitReader
type Option func(*BitReader)

// WithNameTable shares a session-wide name table with the reader
func WithNameTable(t *NameTable) Option {
	return func(r *BitReader) {
		r.names = t
	}
}

// WithBitLength limits the reader to the first n bits of the buffer, for
// streams whose last byte is only partially used
func WithBitLength(n int) Option {
	return func(r *BitReader) {
		if n >= 0 && n < r.end {
			r.end = n
		}
	}
}

// New creates a reader positioned at bit 0 of data
func New(data []byte, opts ...Option) *BitReader {
	r := &BitReader{
		data: data,
		end:  len(data) * 8,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Position returns the number of bits consumed so far
func (r *BitReader) Position() int {
	return r.pos
}

// Remaining returns the number of unread bits
func (r *BitReader) Remaining() int {
	return r.end - r.pos
}

// Len returns the total number of readable bits
func (r *BitReader) Len() int {
	return r.end
}

// AtEnd reports whether every bit has been consumed
func (r *BitReader) AtEnd() bool {
	return r.pos >= r.end
}

// Names returns the name table used by ReadName, creating one if needed
func (r *BitReader) Names() *NameTable {
	if r.names == nil {
		r.names = NewNameTable()
	}
	return r.names
}

func (r *BitReader) outOfData(n int) error {
	return fmt.Errorf("%w: need %d bits at position %d, %d remaining", ErrOutOfData, n, r.pos, r.end-r.pos)
}

// ReadBit reads a single bit
func (r *BitReader) ReadBit() (bool, error) {
	if r.pos >= r.end {
		return false, r.outOfData(1)
	}
	bit := (r.data[r.pos>>3] >> uint(r.pos&7)) & 1
	r.pos++
	return bit == 1, nil
}

// ReadBits reads n bits (0..64) and assembles them least-significant-bit first
func (r *BitReader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("bitreader: invalid bit count %d", n)
	}
	if n > r.end-r.pos {
		return 0, r.outOfData(n)
	}

	var value uint64
	for read := 0; read < n; {
		offset := r.pos & 7
		take := min(8-offset, n-read)
		chunk := uint64(r.data[r.pos>>3]>>uint(offset)) & (1<<uint(take) - 1)
		value |= chunk << uint(read)
		read += take
		r.pos += take
	}
	return value, nil
}

// ReadByte reads 8 bits
func (r *BitReader) ReadByte() (byte, error) {
	v, err := r.ReadBits(8)
	return byte(v), err
}

// ReadBytes reads n bytes; equivalent to n calls of ReadByte
func (r *BitReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("bitreader: invalid byte count %d", n)
	}
	if n*8 > r.end-r.pos {
		return nil, r.outOfData(n * 8)
	}

	out := make([]byte, n)
	if r.pos&7 == 0 {
		start := r.pos >> 3
		copy(out, r.data[start:start+n])
		r.pos += n * 8
		return out, nil
	}

	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// Skip advances the position by n bits
func (r *BitReader) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("bitreader: invalid skip %d", n)
	}
	if n > r.end-r.pos {
		return r.outOfData(n)
	}
	r.pos += n
	return nil
}

// SubReader consumes the next n bits and returns a reader limited to them.
// The returned reader shares the name table.
func (r *BitReader) SubReader(n int) (*BitReader, error) {
	if n < 0 {
		return nil, fmt.Errorf("bitreader: invalid sub-reader length %d", n)
	}
	if n > r.end-r.pos {
		return nil, r.outOfData(n)
	}
	sub := &BitReader{
		data:  r.data,
		pos:   r.pos,
		end:   r.pos + n,
		names: r.Names(),
	}
	r.pos += n
	return sub, nil
}

// ReadUint16 reads a little-endian uint16
func (r *BitReader) ReadUint16() (uint16, error) {
	v, err := r.ReadBits(16)
	return uint16(v), err
}

// ReadUint32 reads a little-endian uint32
func (r *BitReader) ReadUint32() (uint32, error) {
	v, err := r.ReadBits(32)
	return uint32(v), err
}

// ReadUint64 reads a little-endian uint64
func (r *BitReader) ReadUint64() (uint64, error) {
	return r.ReadBits(64)
}

// ReadInt8 reads a signed byte
func (r *BitReader) ReadInt8() (int8, error) {
	v, err := r.ReadBits(8)
	return int8(v), err
}

// ReadInt16 reads a little-endian int16
func (r *BitReader) ReadInt16() (int16, error) {
	v, err := r.ReadBits(16)
	return int16(v), err
}

// ReadInt32 reads a little-endian int32
func (r *BitReader) ReadInt32() (int32, error) {
	v, err := r.ReadBits(32)
	return int32(v), err
}

// ReadInt64 reads a little-endian int64
func (r *BitReader) ReadInt64() (int64, error) {
	v, err := r.ReadBits(64)
	return int64(v), err
}

// ReadFloat32 reads an IEEE-754 single precision float
func (r *BitReader) ReadFloat32() (float32, error) {
	v, err := r.ReadBits(32)
	return math.Float32frombits(uint32(v)), err
}

// ReadPackedUint reads a variable-length integer: each byte carries 7 value
// bits in its upper bits and a continuation flag in bit 0
func (r *BitReader) ReadPackedUint() (uint32, error) {
	var value uint32
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint32(b>>1) << (7 * i)
		if b&1 == 0 {
			return value, nil
		}
	}
	return 0, ErrInvalidPackedInt
}

// ReadSerializedInt reads an integer in [0, limit) using only as many bits as
// limit requires
func (r *BitReader) ReadSerializedInt(limit uint32) (uint32, error) {
	var value uint32
	for mask := uint32(1); value+mask < limit && mask != 0; mask <<= 1 {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit {
			value |= mask
		}
	}
	return value, nil
}

// ReadEnum reads an enum value of the given width. The width is derived by
// the caller from the declared enum cardinality.
func (r *BitReader) ReadEnum(bits int) (uint64, error) {
	return r.ReadBits(bits)
}

// ReadPlane always fails: plane properties have no wire decoder
func (r *BitReader) ReadPlane() error {
	return fmt.Errorf("%w: plane", ErrNotImplemented)
}
