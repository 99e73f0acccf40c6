package bitreader

import (
	"errors"
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBitsRoundTrip(t *testing.T) {
	faker := gofakeit.New(42)

	for n := 1; n <= 64; n++ {
		value := faker.Uint64()
		if n < 64 {
			value &= 1<<uint(n) - 1
		}

		w := NewWriter()
		w.WriteBit(true) // misalign
		w.WriteBits(value, n)

		r := New(w.Bytes(), WithBitLength(w.Len()))
		_, err := r.ReadBit()
		require.NoError(t, err)

		got, err := r.ReadBits(n)
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, value, got, "n=%d", n)
		assert.True(t, r.AtEnd())
	}
}

func TestReadBitsLSBFirst(t *testing.T) {
	r := New([]byte{0x01, 0x80})

	bit, err := r.ReadBit()
	require.NoError(t, err)
	assert.True(t, bit)

	v, err := r.ReadBits(14)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	bit, err = r.ReadBit()
	require.NoError(t, err)
	assert.True(t, bit)
	assert.Equal(t, 16, r.Position())
}

func TestReadBitsOutOfData(t *testing.T) {
	r := New([]byte{0xff})
	_, err := r.ReadBits(3)
	require.NoError(t, err)

	_, err = r.ReadBits(6)
	assert.ErrorIs(t, err, ErrOutOfData)
	assert.Equal(t, 3, r.Position(), "failed read must not advance")

	_, err = r.ReadUint32()
	assert.ErrorIs(t, err, ErrOutOfData)
	assert.Equal(t, 3, r.Position())
	assert.Equal(t, 5, r.Remaining())
}

func TestReadBytes(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	r := New(data)
	got, err := r.ReadBytes(3)
	require.NoError(t, err)
	assert.Equal(t, data[:3], got)
	assert.Equal(t, 24, r.Position())

	// unaligned path
	w := NewWriter()
	w.WriteBits(0x5, 3)
	w.WriteBytes(data)
	r = New(w.Bytes(), WithBitLength(w.Len()))
	require.NoError(t, r.Skip(3))
	got, err = r.ReadBytes(4)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = r.ReadBytes(1)
	assert.ErrorIs(t, err, ErrOutOfData)
}

func TestFixedWidthIntegers(t *testing.T) {
	w := NewWriter()
	w.WriteUint16(0xbeef)
	w.WriteInt32(-7)
	w.WriteFloat32(1.5)
	w.WriteUint8(0x80)

	r := New(w.Bytes())
	u16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xbeef), u16)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i32)

	f, err := r.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)

	i8, err := r.ReadInt8()
	require.NoError(t, err)
	assert.Equal(t, int8(-128), i8)
}

func TestReadPackedUint(t *testing.T) {
	tests := []struct {
		name  string
		value uint32
		bytes int
	}{
		{"zero", 0, 1},
		{"single byte max", 127, 1},
		{"two bytes", 128, 2},
		{"large", 1 << 30, 5},
		{"max", math.MaxUint32, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			w.WritePackedUint(tt.value)
			assert.Equal(t, tt.bytes*8, w.Len())

			got, err := New(w.Bytes()).ReadPackedUint()
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}

	_, err := New([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x00}).ReadPackedUint()
	assert.ErrorIs(t, err, ErrInvalidPackedInt)
}

func TestReadSerializedInt(t *testing.T) {
	faker := gofakeit.New(7)

	for i := 0; i < 200; i++ {
		limit := uint32(faker.IntRange(2, 1<<20))
		value := uint32(faker.IntRange(0, int(limit)-1))

		w := NewWriter()
		w.WriteSerializedInt(value, limit)
		got, err := New(w.Bytes(), WithBitLength(w.Len())).ReadSerializedInt(limit)
		require.NoError(t, err)
		assert.Equal(t, value, got, "limit=%d", limit)
	}

	// a power of two limit costs exactly log2(limit) bits
	w := NewWriter()
	w.WriteSerializedInt(3, 16)
	assert.Equal(t, 4, w.Len())
}

func TestReadString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		wide bool
	}{
		{"empty", "", false},
		{"ascii", "PlayerState", false},
		{"latin1", "Café", false},
		{"wide", "プレイヤー", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			w.WriteString(tt.in)

			r := New(w.Bytes())
			length, err := New(w.Bytes()).ReadInt32()
			require.NoError(t, err)
			assert.Equal(t, tt.wide, length < 0)

			got, err := r.ReadString()
			require.NoError(t, err)
			assert.Equal(t, tt.in, got)
			assert.True(t, r.AtEnd())
		})
	}
}

func TestReadStringInvalidLength(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(MaxStringLength + 1)
	_, err := New(w.Bytes()).ReadString()
	assert.ErrorIs(t, err, ErrInvalidString)

	w = NewWriter()
	w.WriteInt32(10)
	w.WriteBytes([]byte("abc"))
	_, err = New(w.Bytes()).ReadString()
	assert.ErrorIs(t, err, ErrOutOfData)
}

func TestReadName(t *testing.T) {
	w := NewWriter()
	w.WriteName("Location")
	w.WriteName("Rotation")
	w.WriteName("Location")

	r := New(w.Bytes(), WithBitLength(w.Len()))
	for _, want := range []string{"Location", "Rotation", "Location"} {
		got, err := r.ReadName()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 2, r.Names().Len())

	w = NewWriter()
	w.WriteBit(true)
	w.WritePackedUint(9)
	_, err := New(w.Bytes()).ReadName()
	assert.ErrorIs(t, err, ErrUnknownName)
}

func TestNameTableShared(t *testing.T) {
	table := NewNameTable()
	table.Add("Health")

	w := NewWriter()
	w.WriteBit(true)
	w.WritePackedUint(0)

	got, err := New(w.Bytes(), WithNameTable(table)).ReadName()
	require.NoError(t, err)
	assert.Equal(t, "Health", got)

	table.Reset()
	assert.Equal(t, 0, table.Len())
	_, ok := table.Lookup(0)
	assert.False(t, ok)
}

func TestReadNetID(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		w := NewWriter()
		w.WriteNetID("steam-1234")
		got, err := New(w.Bytes()).ReadNetID()
		require.NoError(t, err)
		assert.Equal(t, "steam-1234", got)
	})

	t.Run("encoded", func(t *testing.T) {
		w := NewWriter()
		w.WriteUint8(0x01)
		w.WriteUint8(3)
		w.WriteBytes([]byte{0xab, 0xcd, 0xef})
		got, err := New(w.Bytes()).ReadNetID()
		require.NoError(t, err)
		assert.Equal(t, "abcdef", got)
	})

	t.Run("encoded empty", func(t *testing.T) {
		got, err := New([]byte{0x03}).ReadNetID()
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})

	t.Run("type name", func(t *testing.T) {
		w := NewWriter()
		w.WriteUint8(31 << 3)
		w.WriteString("EOS")
		w.WriteString("abc")
		got, err := New(w.Bytes()).ReadNetID()
		require.NoError(t, err)
		assert.Equal(t, "abc", got)
	})
}

func TestReadVector(t *testing.T) {
	faker := gofakeit.New(99)

	tests := []struct {
		q         VectorQuantization
		maxAbs    float64
		tolerance float64
	}{
		{VectorFull, 1e5, 0.01},
		{Vector10, 1e5, 0.051},
		{Vector100, 1e5, 0.0051},
		{VectorRoundWholeNumber, 1e5, 0.51},
		{VectorNormal, 1, 1.0 / 32767},
	}

	for _, tt := range tests {
		t.Run(tt.q.String(), func(t *testing.T) {
			for i := 0; i < 50; i++ {
				v := Vector{
					X: faker.Float64Range(-tt.maxAbs, tt.maxAbs),
					Y: faker.Float64Range(-tt.maxAbs, tt.maxAbs),
					Z: faker.Float64Range(-tt.maxAbs, tt.maxAbs),
				}
				w := NewWriter()
				w.WriteVector(v, tt.q)

				r := New(w.Bytes(), WithBitLength(w.Len()))
				got, err := r.ReadVector(tt.q)
				require.NoError(t, err)
				assert.InDelta(t, v.X, got.X, tt.tolerance)
				assert.InDelta(t, v.Y, got.Y, tt.tolerance)
				assert.InDelta(t, v.Z, got.Z, tt.tolerance)
				assert.True(t, r.AtEnd())
			}
		})
	}
}

func TestReadVectorZero(t *testing.T) {
	w := NewWriter()
	w.WriteVector(Vector{}, Vector100)

	got, err := New(w.Bytes(), WithBitLength(w.Len())).ReadVector(Vector100)
	require.NoError(t, err)
	assert.Equal(t, Vector{}, got)
}

func TestReadRotator(t *testing.T) {
	rot := Rotator{Yaw: 90, Roll: 180}

	w := NewWriter()
	w.WriteRotator(rot, true)
	assert.Equal(t, 3+16+16, w.Len())

	r := New(w.Bytes())
	_, err := r.ReadBit()
	require.NoError(t, err)
	_, err = r.ReadBit()
	require.NoError(t, err)
	raw, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(16384), raw)

	got, err := New(w.Bytes()).ReadRotator(true)
	require.NoError(t, err)
	assert.Equal(t, rot, got)

	w = NewWriter()
	w.WriteRotator(Rotator{Yaw: 90}, false)
	assert.Equal(t, 3+8, w.Len())
	r = New(w.Bytes())
	require.NoError(t, r.Skip(2))
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(64), b)

	got, err = New(w.Bytes()).ReadRotator(false)
	require.NoError(t, err)
	assert.Equal(t, Rotator{Yaw: 90}, got)
}

func TestReadMovementBitCount(t *testing.T) {
	m := Movement{
		RepPhysics: true,
		Rotation:   Rotator{Yaw: 90, Roll: 180},
		Velocity:   Vector{X: 1, Y: 2, Z: 3},
		Location:   Vector{X: 100, Y: 200, Z: -300},
	}

	w := NewWriter()
	w.WriteMovement(m, false, false, false)
	// flags (3) + short rotator (35) + velocity and location as floats (192)
	assert.Equal(t, 230, w.Len())

	r := New(w.Bytes(), WithBitLength(w.Len()))
	got, err := r.ReadMovement(false, false, false)
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.True(t, r.AtEnd())
}

func TestReadMovementQuantized(t *testing.T) {
	m := Movement{
		HasAcceleration: true,
		Rotation:        Rotator{Pitch: 45},
		Velocity:        Vector{X: 12.34, Y: -5.5},
		Location:        Vector{X: 1000.25, Y: 20, Z: 3.5},
		Acceleration:    Vector{X: 0.5, Z: -9.8},
	}

	w := NewWriter()
	w.WriteMovement(m, true, true, true)

	got, err := New(w.Bytes(), WithBitLength(w.Len())).ReadMovement(true, true, true)
	require.NoError(t, err)
	assert.False(t, got.RepPhysics)
	assert.True(t, got.HasAcceleration)
	assert.InDelta(t, 45, got.Rotation.Pitch, 360.0/256)
	assert.InDelta(t, m.Velocity.X, got.Velocity.X, 0.005)
	assert.InDelta(t, m.Location.X, got.Location.X, 0.005)
	assert.InDelta(t, m.Acceleration.Z, got.Acceleration.Z, 0.05)
}

func TestReadEnumAndPlane(t *testing.T) {
	w := NewWriter()
	w.WriteBits(5, 3)

	r := New(w.Bytes())
	v, err := r.ReadEnum(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)

	err = r.ReadPlane()
	assert.True(t, errors.Is(err, ErrNotImplemented))
	assert.Equal(t, 3, r.Position())
}

func TestSubReader(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0x3ff, 10)
	w.WriteUint8(0xaa)

	table := NewNameTable()
	r := New(w.Bytes(), WithNameTable(table))
	sub, err := r.SubReader(10)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Position())
	assert.Equal(t, 10, sub.Remaining())
	assert.Same(t, table, sub.Names())

	_, err = sub.ReadBits(11)
	assert.ErrorIs(t, err, ErrOutOfData)

	v, err := sub.ReadBits(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x3ff), v)
	assert.True(t, sub.AtEnd())

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), b)

	_, err = r.SubReader(100)
	assert.ErrorIs(t, err, ErrOutOfData)
}
