package decoder

import (
	"fmt"

	"github.com/fsnow/replay-decoder/pkg/reader"
)

// UnknownClass is the FieldDone group of classes missing from the field table
const UnknownClass = "unknown"

// FieldOutcome says what happened to one framed field
type FieldOutcome uint8

const (
	FieldDecoded FieldOutcome = iota
	FieldSkipped
	FieldUnhandled
	FieldUnresolved
	FieldFailed
	FieldFunctionCall
)

// String returns the lower-case outcome name used as a metric label
func (o FieldOutcome) String() string {
	switch o {
	case FieldDecoded:
		return "decoded"
	case FieldSkipped:
		return "skipped"
	case FieldUnhandled:
		return "unhandled"
	case FieldUnresolved:
		return "unresolved"
	case FieldFailed:
		return "failed"
	case FieldFunctionCall:
		return "function_call"
	default:
		return fmt.Sprintf("unknown(%d)", o)
	}
}

// Observer receives decode progress. Calls happen on the decoding goroutine.
type Observer interface {
	// ChunkDone is called once per chunk; err is nil on success
	ChunkDone(t reader.ChunkType, size int, err error)

	// FieldDone is called for every framed field. group is the field table
	// class of the object's group, UnknownClass for classes missing from the
	// table and empty for unresolved objects.
	FieldDone(group string, outcome FieldOutcome)

	// DecodeDone is called at the end of Decode
	DecodeDone(stats Stats)
}

type nopObserver struct{}

func (nopObserver) ChunkDone(reader.ChunkType, int, error) {}
func (nopObserver) FieldDone(string, FieldOutcome)         {}
func (nopObserver) DecodeDone(Stats)                       {}
