package property

import (
	"fmt"
	"strconv"

	"github.com/fsnow/replay-decoder/pkg/bitreader"
)

// Value is a decoded field value. Kind selects which payload is set.
type Value struct {
	Kind     Kind
	Bool     bool
	Int      int64
	Uint     uint64
	Float    float64
	Str      string
	Vector   bitreader.Vector
	Vector2D bitreader.Vector2D
	Rotator  bitreader.Rotator
	Movement *bitreader.Movement
}

// Interface returns the payload as a plain Go value
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool, KindNativeBool:
		return v.Bool
	case KindName, KindString, KindNetID:
		return v.Str
	case KindFloat:
		return v.Float
	case KindObject, KindEnum, KindByte, KindUint16, KindUint32, KindUint64:
		return v.Uint
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.Int
	case KindRotator, KindRotatorByte:
		return v.Rotator
	case KindVector, KindVector10, KindVector100, KindVectorNormal, KindVectorQ:
		return v.Vector
	case KindVector2D:
		return v.Vector2D
	case KindMovement:
		if v.Movement == nil {
			return nil
		}
		return *v.Movement
	default:
		return nil
	}
}

// String formats the payload for logs and tables
func (v Value) String() string {
	switch p := v.Interface().(type) {
	case nil:
		return "<nil>"
	case bool:
		return strconv.FormatBool(p)
	case string:
		return strconv.Quote(p)
	case float64:
		return strconv.FormatFloat(p, 'g', -1, 64)
	case uint64:
		return strconv.FormatUint(p, 10)
	case int64:
		return strconv.FormatInt(p, 10)
	case bitreader.Vector:
		return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Z)
	case bitreader.Vector2D:
		return fmt.Sprintf("(%g, %g)", p.X, p.Y)
	case bitreader.Rotator:
		return fmt.Sprintf("(P=%g, Y=%g, R=%g)", p.Pitch, p.Yaw, p.Roll)
	case bitreader.Movement:
		return fmt.Sprintf("loc=(%g, %g, %g) vel=(%g, %g, %g)",
			p.Location.X, p.Location.Y, p.Location.Z,
			p.Velocity.X, p.Velocity.Y, p.Velocity.Z)
	default:
		return fmt.Sprint(p)
	}
}
