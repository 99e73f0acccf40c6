package bitreader

import "fmt"

// Vector is a three component position, velocity or direction
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vector2D is a two component vector
type Vector2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rotator holds angles in degrees
type Rotator struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Movement is the replicated movement composite
type Movement struct {
	RepPhysics           bool    `json:"rep_physics"`
	HasAcceleration      bool    `json:"has_acceleration"`
	SimulatedPhysicSleep bool    `json:"simulated_physic_sleep"`
	Rotation             Rotator `json:"rotation"`
	Velocity             Vector  `json:"velocity"`
	Location             Vector  `json:"location"`
	Acceleration         Vector  `json:"acceleration"`
}

// VectorQuantization selects how a vector is laid out on the wire
type VectorQuantization uint8

const (
	// VectorFull is three 32-bit floats
	VectorFull VectorQuantization = iota
	// Vector10 is packed with one decimal digit of precision
	Vector10
	// Vector100 is packed with two decimal digits of precision
	Vector100
	// VectorRoundWholeNumber is packed with integer components
	VectorRoundWholeNumber
	// VectorNormal is three 16-bit fixed point components in [-1, 1]
	VectorNormal
)

// String returns a human-readable name for the quantization
func (q VectorQuantization) String() string {
	switch q {
	case VectorFull:
		return "full"
	case Vector10:
		return "vector10"
	case Vector100:
		return "vector100"
	case VectorRoundWholeNumber:
		return "round_whole_number"
	case VectorNormal:
		return "normal"
	default:
		return fmt.Sprintf("Unknown(%d)", q)
	}
}

type packedParams struct {
	scale   float64
	maxBits uint32
}

var packedVectors = map[VectorQuantization]packedParams{
	Vector10:               {scale: 10, maxBits: 24},
	Vector100:              {scale: 100, maxBits: 30},
	VectorRoundWholeNumber: {scale: 1, maxBits: 20},
}

const (
	normalBits     = 16
	normalMaxValue = 1.0
)

// ReadVector reads a vector in the given quantization
func (r *BitReader) ReadVector(q VectorQuantization) (Vector, error) {
	switch q {
	case VectorFull:
		return r.readFullVector()
	case VectorNormal:
		return r.readNormalVector()
	}

	params, ok := packedVectors[q]
	if !ok {
		return Vector{}, fmt.Errorf("%w: vector quantization %s", ErrNotImplemented, q)
	}
	return r.readPackedVector(params.scale, params.maxBits)
}

func (r *BitReader) readFullVector() (Vector, error) {
	var components [3]float32
	for i := range components {
		f, err := r.ReadFloat32()
		if err != nil {
			return Vector{}, err
		}
		components[i] = f
	}
	return Vector{X: float64(components[0]), Y: float64(components[1]), Z: float64(components[2])}, nil
}

func (r *BitReader) readPackedVector(scale float64, maxBits uint32) (Vector, error) {
	bits, err := r.ReadSerializedInt(maxBits)
	if err != nil {
		return Vector{}, err
	}
	bias := int64(1) << (bits + 1)
	limit := uint32(1) << (bits + 2)

	var components [3]float64
	for i := range components {
		delta, err := r.ReadSerializedInt(limit)
		if err != nil {
			return Vector{}, err
		}
		components[i] = float64(int64(delta)-bias) / scale
	}
	return Vector{X: components[0], Y: components[1], Z: components[2]}, nil
}

func (r *BitReader) readNormalVector() (Vector, error) {
	var components [3]float64
	for i := range components {
		f, err := r.ReadFixedCompressedFloat(normalMaxValue, normalBits)
		if err != nil {
			return Vector{}, err
		}
		components[i] = f
	}
	return Vector{X: components[0], Y: components[1], Z: components[2]}, nil
}

// ReadFixedCompressedFloat reads a float in [-maxValue, maxValue] stored as a
// biased fixed point integer of numBits bits
func (r *BitReader) ReadFixedCompressedFloat(maxValue float64, numBits uint) (float64, error) {
	maxBitValue := float64(int64(1)<<(numBits-1) - 1)
	bias := int64(1) << (numBits - 1)
	serIntMax := uint32(1) << numBits

	delta, err := r.ReadSerializedInt(serIntMax)
	if err != nil {
		return 0, err
	}
	unscaled := float64(int64(delta) - bias)

	if maxValue > maxBitValue {
		return unscaled * (maxValue / maxBitValue), nil
	}
	return unscaled / (maxBitValue / maxValue), nil
}

// ReadVector2D reads two 32-bit floats
func (r *BitReader) ReadVector2D() (Vector2D, error) {
	x, err := r.ReadFloat32()
	if err != nil {
		return Vector2D{}, err
	}
	y, err := r.ReadFloat32()
	if err != nil {
		return Vector2D{}, err
	}
	return Vector2D{X: float64(x), Y: float64(y)}, nil
}

// ReadRotator reads a compressed rotator. Each axis is preceded by a
// presence bit; a present axis is a 16-bit angle when short is set, a byte
// angle otherwise. Absent axes are zero.
func (r *BitReader) ReadRotator(short bool) (Rotator, error) {
	var axes [3]float64
	for i := range axes {
		present, err := r.ReadBit()
		if err != nil {
			return Rotator{}, err
		}
		if !present {
			continue
		}
		if short {
			v, err := r.ReadUint16()
			if err != nil {
				return Rotator{}, err
			}
			axes[i] = float64(v) * 360 / 65536
		} else {
			v, err := r.ReadByte()
			if err != nil {
				return Rotator{}, err
			}
			axes[i] = float64(v) * 360 / 256
		}
	}
	return Rotator{Pitch: axes[0], Yaw: axes[1], Roll: axes[2]}, nil
}

// ReadMovement reads the movement composite.
//
// Layout: rep-physics bit, has-acceleration bit, a simulated-physics-sleep
// bit when rep-physics is set, the rotation (byte axes when quantized, short
// axes otherwise), velocity and location (Vector100 when quantized, full
// floats otherwise) and the acceleration when present (Vector10 when
// quantized, full floats otherwise).
func (r *BitReader) ReadMovement(quantizeRotation, quantizeVelocity, quantizeAcceleration bool) (Movement, error) {
	var m Movement
	var err error

	if m.RepPhysics, err = r.ReadBit(); err != nil {
		return Movement{}, err
	}
	if m.HasAcceleration, err = r.ReadBit(); err != nil {
		return Movement{}, err
	}
	if m.RepPhysics {
		if m.SimulatedPhysicSleep, err = r.ReadBit(); err != nil {
			return Movement{}, err
		}
	}

	if m.Rotation, err = r.ReadRotator(!quantizeRotation); err != nil {
		return Movement{}, err
	}

	velocity := VectorFull
	if quantizeVelocity {
		velocity = Vector100
	}
	if m.Velocity, err = r.ReadVector(velocity); err != nil {
		return Movement{}, err
	}
	if m.Location, err = r.ReadVector(velocity); err != nil {
		return Movement{}, err
	}

	if m.HasAcceleration {
		acceleration := VectorFull
		if quantizeAcceleration {
			acceleration = Vector10
		}
		if m.Acceleration, err = r.ReadVector(acceleration); err != nil {
			return Movement{}, err
		}
	}
	return m, nil
}
