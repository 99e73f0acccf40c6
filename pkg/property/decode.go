// Package property maps a field's wire encoding onto the bit reader call
// that decodes it.
package property

import (
	"github.com/fsnow/replay-decoder/pkg/bitreader"
)

var vectorKinds = map[Kind]bitreader.VectorQuantization{
	KindVector:       bitreader.VectorFull,
	KindVector10:     bitreader.Vector10,
	KindVector100:    bitreader.Vector100,
	KindVectorNormal: bitreader.VectorNormal,
	KindVectorQ:      bitreader.VectorRoundWholeNumber,
}

// Decode reads one value of the kind named by desc.
//
// handled is false, with a nil error, for kinds that have no decoder; the
// caller is expected to skip the field by its framed length. Plane fields
// fail with bitreader.ErrNotImplemented.
func Decode(desc Descriptor, r *bitreader.BitReader) (v Value, handled bool, err error) {
	v.Kind = desc.Kind

	switch desc.Kind {
	case KindBool, KindNativeBool:
		v.Bool, err = r.ReadBit()
	case KindName:
		v.Str, err = r.ReadName()
	case KindString:
		v.Str, err = r.ReadString()
	case KindNetID:
		v.Str, err = r.ReadNetID()
	case KindFloat:
		var f float32
		f, err = r.ReadFloat32()
		v.Float = float64(f)
	case KindObject:
		var handle uint32
		handle, err = r.ReadPackedUint()
		v.Uint = uint64(handle)
	case KindRotator:
		v.Rotator, err = r.ReadRotator(true)
	case KindRotatorByte:
		v.Rotator, err = r.ReadRotator(false)
	case KindVector, KindVector10, KindVector100, KindVectorNormal, KindVectorQ:
		v.Vector, err = r.ReadVector(vectorKinds[desc.Kind])
	case KindVector2D:
		v.Vector2D, err = r.ReadVector2D()
	case KindPlane:
		err = r.ReadPlane()
	case KindMovement:
		var m bitreader.Movement
		m, err = r.ReadMovement(desc.QuantizeRotation, desc.QuantizeVelocity, desc.QuantizeAcceleration)
		v.Movement = &m
	case KindEnum:
		v.Uint, err = r.ReadEnum(desc.EnumBits)
	case KindByte:
		v.Uint, err = r.ReadBits(8)
	case KindUint16:
		v.Uint, err = r.ReadBits(16)
	case KindUint32:
		v.Uint, err = r.ReadBits(32)
	case KindUint64:
		v.Uint, err = r.ReadUint64()
	case KindInt8:
		var i int8
		i, err = r.ReadInt8()
		v.Int = int64(i)
	case KindInt16:
		var i int16
		i, err = r.ReadInt16()
		v.Int = int64(i)
	case KindInt32:
		var i int32
		i, err = r.ReadInt32()
		v.Int = int64(i)
	case KindInt64:
		v.Int, err = r.ReadInt64()
	default:
		return Value{Kind: desc.Kind}, false, nil
	}

	if err != nil {
		return Value{Kind: desc.Kind}, true, err
	}
	return v, true, nil
}
