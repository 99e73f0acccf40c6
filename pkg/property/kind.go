package property

import (
	"fmt"
	"math/bits"
	"strings"
)

// Kind is the wire encoding of a replicated field
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBool
	KindNativeBool
	KindName
	KindFloat
	KindNetID
	KindObject
	KindRotator
	KindRotatorByte
	KindString
	KindVector
	KindVector10
	KindVector100
	KindVectorNormal
	KindVectorQ
	KindVector2D
	KindPlane
	KindMovement
	KindEnum
	KindByte
	KindInt8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindBool:         "bool",
	KindNativeBool:   "native_bool",
	KindName:         "name",
	KindFloat:        "float",
	KindNetID:        "net_id",
	KindObject:       "object",
	KindRotator:      "rotator",
	KindRotatorByte:  "rotator_byte",
	KindString:       "string",
	KindVector:       "vector",
	KindVector10:     "vector10",
	KindVector100:    "vector100",
	KindVectorNormal: "vector_normal",
	KindVectorQ:      "vector_q",
	KindVector2D:     "vector2d",
	KindPlane:        "plane",
	KindMovement:     "movement",
	KindEnum:         "enum",
	KindByte:         "byte",
	KindInt8:         "int8",
	KindInt16:        "int16",
	KindUint16:       "uint16",
	KindInt32:        "int32",
	KindUint32:       "uint32",
	KindInt64:        "int64",
	KindUint64:       "uint64",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// String returns the configuration name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", k)
}

// KindFromString parses a kind name as used in field tables
func KindFromString(s string) (Kind, error) {
	if k, ok := kindsByName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("unknown property kind %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := KindFromString(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Descriptor tells the dispatcher how one field is laid out on the wire.
// Quantization flags apply to movement fields only.
type Descriptor struct {
	Kind                 Kind `toml:"kind" json:"kind"`
	EnumBits             int  `toml:"enum_bits,omitempty" json:"enum_bits,omitempty"`
	QuantizeRotation     bool `toml:"quantize_rotation,omitempty" json:"quantize_rotation,omitempty"`
	QuantizeVelocity     bool `toml:"quantize_velocity,omitempty" json:"quantize_velocity,omitempty"`
	QuantizeAcceleration bool `toml:"quantize_acceleration,omitempty" json:"quantize_acceleration,omitempty"`
}

// EnumBitWidth returns ceil(log2(cardinality)), the bit width of an enum
// with that many values
func EnumBitWidth(cardinality int) int {
	if cardinality <= 1 {
		return 0
	}
	return bits.Len(uint(cardinality - 1))
}
