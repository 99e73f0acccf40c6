package bitreader

import (
	"math"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// BitWriter produces bit streams in the layout BitReader consumes. It backs
// test fixtures and tools that synthesise replay data.
type BitWriter struct {
	buf   []byte
	pos   int
	names *NameTable
}

// NewWriter creates an empty writer with its own name table
func NewWriter() *BitWriter {
	return &BitWriter{names: NewNameTable()}
}

// Bytes returns the written data; a partial last byte is zero padded
func (w *BitWriter) Bytes() []byte {
	return w.buf
}

// Len returns the number of bits written
func (w *BitWriter) Len() int {
	return w.pos
}

// WriteBit appends one bit
func (w *BitWriter) WriteBit(bit bool) {
	if w.pos&7 == 0 {
		w.buf = append(w.buf, 0)
	}
	if bit {
		w.buf[w.pos>>3] |= 1 << uint(w.pos&7)
	}
	w.pos++
}

// WriteBits appends the low n bits of v, least-significant first
func (w *BitWriter) WriteBits(v uint64, n int) {
	for i := 0; i < n; i++ {
		w.WriteBit(v&(1<<uint(i)) != 0)
	}
}

// Append copies every bit written to other
func (w *BitWriter) Append(other *BitWriter) {
	for i := 0; i < other.pos; i++ {
		w.WriteBit(other.buf[i>>3]&(1<<uint(i&7)) != 0)
	}
}

// WriteUint8 appends 8 bits
func (w *BitWriter) WriteUint8(b byte) {
	w.WriteBits(uint64(b), 8)
}

// WriteBytes appends raw bytes
func (w *BitWriter) WriteBytes(p []byte) {
	for _, b := range p {
		w.WriteUint8(b)
	}
}

// WriteUint16 appends a little-endian uint16
func (w *BitWriter) WriteUint16(v uint16) {
	w.WriteBits(uint64(v), 16)
}

// WriteUint32 appends a little-endian uint32
func (w *BitWriter) WriteUint32(v uint32) {
	w.WriteBits(uint64(v), 32)
}

// WriteInt32 appends a little-endian int32
func (w *BitWriter) WriteInt32(v int32) {
	w.WriteBits(uint64(uint32(v)), 32)
}

// WriteFloat32 appends an IEEE-754 float
func (w *BitWriter) WriteFloat32(f float32) {
	w.WriteBits(uint64(math.Float32bits(f)), 32)
}

// WritePackedUint appends v in the packed 7-bit-per-byte form
func (w *BitWriter) WritePackedUint(v uint32) {
	for {
		b := byte(v&0x7f) << 1
		v >>= 7
		if v != 0 {
			b |= 1
		}
		w.WriteUint8(b)
		if v == 0 {
			return
		}
	}
}

// WriteSerializedInt appends v (< limit) using the bits ReadSerializedInt expects
func (w *BitWriter) WriteSerializedInt(v, limit uint32) {
	var written uint32
	for mask := uint32(1); written+mask < limit && mask != 0; mask <<= 1 {
		bit := v&mask != 0
		w.WriteBit(bit)
		if bit {
			written |= mask
		}
	}
}

// WriteString appends s with a NUL terminator: single-byte characters when s
// is Latin-1 representable, UTF-16LE otherwise
func (w *BitWriter) WriteString(s string) {
	if s == "" {
		w.WriteInt32(0)
		return
	}
	if narrow, err := charmap.ISO8859_1.NewEncoder().String(s); err == nil {
		w.WriteInt32(int32(len(narrow) + 1))
		w.WriteBytes([]byte(narrow))
		w.WriteUint8(0)
		return
	}
	w.WriteWideString(s)
}

// WriteWideString appends s as UTF-16LE with a NUL terminator
func (w *BitWriter) WriteWideString(s string) {
	wide, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s + "\x00"))
	if err != nil {
		panic(err)
	}
	w.WriteInt32(-int32(len(wide) / 2))
	w.WriteBytes(wide)
}

// WriteName appends a reference when name was written before, the inline
// string otherwise
func (w *BitWriter) WriteName(name string) {
	if idx, ok := w.names.Index(name); ok {
		w.WriteBit(true)
		w.WritePackedUint(idx)
		return
	}
	w.WriteBit(false)
	w.WriteString(name)
	w.names.Add(name)
}

// WriteNetID appends a string net id (type hash 0)
func (w *BitWriter) WriteNetID(id string) {
	w.WriteUint8(0)
	w.WriteString(id)
}

// WriteVector appends v in the given quantization
func (w *BitWriter) WriteVector(v Vector, q VectorQuantization) {
	switch q {
	case VectorFull:
		w.WriteFloat32(float32(v.X))
		w.WriteFloat32(float32(v.Y))
		w.WriteFloat32(float32(v.Z))
	case VectorNormal:
		for _, c := range [3]float64{v.X, v.Y, v.Z} {
			w.WriteFixedCompressedFloat(c, normalMaxValue, normalBits)
		}
	default:
		params := packedVectors[q]
		w.writePackedVector(v, params.scale, params.maxBits)
	}
}

func (w *BitWriter) writePackedVector(v Vector, scale float64, maxBits uint32) {
	ints := [3]int64{
		int64(math.Round(v.X * scale)),
		int64(math.Round(v.Y * scale)),
		int64(math.Round(v.Z * scale)),
	}

	var largest uint64
	for _, c := range ints {
		largest = max(largest, uint64(abs64(c)))
	}

	// bits needed for 1+largest, clamped to [1, maxBits]
	needed := uint32(0)
	for (uint64(1) << needed) < 1+largest {
		needed++
	}
	needed = min(max(needed, 1), maxBits)
	bits := needed - 1

	bias := int64(1) << (bits + 1)
	limit := int64(1) << (bits + 2)
	w.WriteSerializedInt(bits, maxBits)
	for _, c := range ints {
		delta := min(max(c+bias, 0), limit-1)
		w.WriteSerializedInt(uint32(delta), uint32(limit))
	}
}

// WriteFixedCompressedFloat mirrors ReadFixedCompressedFloat
func (w *BitWriter) WriteFixedCompressedFloat(value, maxValue float64, numBits uint) {
	maxBitValue := float64(int64(1)<<(numBits-1) - 1)
	bias := int64(1) << (numBits - 1)
	serIntMax := int64(1) << numBits

	var scaled int64
	if maxValue > maxBitValue {
		scaled = int64(math.Round(value / (maxValue / maxBitValue)))
	} else {
		scaled = int64(math.Round(value * (maxBitValue / maxValue)))
	}
	delta := min(max(scaled+bias, 0), serIntMax-1)
	w.WriteSerializedInt(uint32(delta), uint32(serIntMax))
}

// WriteVector2D appends two floats
func (w *BitWriter) WriteVector2D(v Vector2D) {
	w.WriteFloat32(float32(v.X))
	w.WriteFloat32(float32(v.Y))
}

// WriteRotator appends a compressed rotator; zero axes are written as absent
func (w *BitWriter) WriteRotator(rot Rotator, short bool) {
	for _, angle := range [3]float64{rot.Pitch, rot.Yaw, rot.Roll} {
		if short {
			v := uint16(int64(math.Round(angle*65536/360)) & 0xffff)
			w.WriteBit(v != 0)
			if v != 0 {
				w.WriteUint16(v)
			}
			continue
		}
		v := byte(int64(math.Round(angle*256/360)) & 0xff)
		w.WriteBit(v != 0)
		if v != 0 {
			w.WriteUint8(v)
		}
	}
}

// WriteMovement mirrors ReadMovement
func (w *BitWriter) WriteMovement(m Movement, quantizeRotation, quantizeVelocity, quantizeAcceleration bool) {
	w.WriteBit(m.RepPhysics)
	w.WriteBit(m.HasAcceleration)
	if m.RepPhysics {
		w.WriteBit(m.SimulatedPhysicSleep)
	}
	w.WriteRotator(m.Rotation, !quantizeRotation)

	velocity := VectorFull
	if quantizeVelocity {
		velocity = Vector100
	}
	w.WriteVector(m.Velocity, velocity)
	w.WriteVector(m.Location, velocity)

	if m.HasAcceleration {
		acceleration := VectorFull
		if quantizeAcceleration {
			acceleration = Vector10
		}
		w.WriteVector(m.Acceleration, acceleration)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
