package decoder

import (
	"github.com/fsnow/replay-decoder/pkg/netcache"
	"github.com/fsnow/replay-decoder/pkg/property"
	"github.com/fsnow/replay-decoder/pkg/reader"
)

// Replay is the output of one decode session
type Replay struct {
	SessionID string
	Name      string
	Header    *reader.Header

	Objects       map[uint32]*Object
	Updates       []Update
	FunctionCalls []FunctionCall
	Events        []*reader.Event
	FieldErrors   []FieldError

	Stats Stats
}

// Object is the latest known state of one replicated object
type Object struct {
	Handle           uint32
	Archetype        uint32
	Group            string
	PlayerController bool
	Properties       map[string]property.Value
}

// Update is one decoded property write, in stream order
type Update struct {
	TimeMs uint32
	Object uint32
	Group  string
	Field  string
	Value  property.Value
}

// FunctionCall is one RPC invocation. Value is nil when the parameter
// encoding is not known.
type FunctionCall struct {
	TimeMs   uint32
	Object   uint32
	Group    string
	Function string
	TypePath string
	Value    *property.Value
}

// FieldError records a field that could not be decoded. Decoding continued
// with the next field.
type FieldError struct {
	TimeMs uint32
	Object uint32
	Group  string
	Field  string
	Error  string
}

// Stats counts what happened during a decode
type Stats struct {
	Chunks       int
	FailedChunks int
	Checkpoints  int
	Records      int
	Exports      int
	Groups       int
	Decoded      int
	Skipped      int
	Unhandled    int
	Unresolved   int
	FieldErrors  int
	Functions    int

	// CustomStructs counts ClassNetCache struct properties skipped
	// undecoded; they are also counted in Unhandled
	CustomStructs int

	Registry netcache.Stats
}

func newReplay(sessionID string) *Replay {
	return &Replay{
		SessionID: sessionID,
		Objects:   make(map[uint32]*Object),
	}
}

// Property returns the latest value of an object's field
func (r *Replay) Property(object uint32, field string) (property.Value, bool) {
	obj, ok := r.Objects[object]
	if !ok {
		return property.Value{}, false
	}
	v, ok := obj.Properties[field]
	return v, ok
}

func (r *Replay) object(handle uint32) *Object {
	obj, ok := r.Objects[handle]
	if !ok {
		obj = &Object{
			Handle:     handle,
			Properties: make(map[string]property.Value),
		}
		r.Objects[handle] = obj
	}
	return obj
}
