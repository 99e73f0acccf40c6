// Package export converts decoded replays to BSON documents and stores them
// in MongoDB.
package export

import (
	"math"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/fsnow/replay-decoder/pkg/bitreader"
	"github.com/fsnow/replay-decoder/pkg/decoder"
	"github.com/fsnow/replay-decoder/pkg/property"
)

// Document builds the summary document of a replay: header, stats, final
// object states, function calls, events and field errors. Updates are
// exported separately by UpdateDocuments.
func Document(r *decoder.Replay) bson.M {
	doc := bson.M{
		"session_id": r.SessionID,
		"name":       r.Name,
		"stats":      statsDocument(r.Stats),
	}

	if h := r.Header; h != nil {
		doc["header"] = bson.M{
			"file_version":    int64(h.FileVersion),
			"length_ms":       int64(h.LengthInMs),
			"network_version": int64(h.NetworkVersion),
			"changelist":      int64(h.Changelist),
			"friendly_name":   h.FriendlyName,
			"is_live":         h.IsLive,
			"is_compressed":   h.IsCompressed,
		}
	}

	handles := make([]uint32, 0, len(r.Objects))
	for handle := range r.Objects {
		handles = append(handles, handle)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	objects := bson.A{}
	for _, handle := range handles {
		obj := r.Objects[handle]
		props := bson.M{}
		for name, v := range obj.Properties {
			props[name] = Value(v)
		}
		objects = append(objects, bson.M{
			"handle":            int64(obj.Handle),
			"archetype":         int64(obj.Archetype),
			"group":             obj.Group,
			"player_controller": obj.PlayerController,
			"properties":        props,
		})
	}
	doc["objects"] = objects

	calls := bson.A{}
	for _, call := range r.FunctionCalls {
		c := bson.M{
			"time_ms":  int64(call.TimeMs),
			"object":   int64(call.Object),
			"group":    call.Group,
			"function": call.Function,
		}
		if call.TypePath != "" {
			c["type_path"] = call.TypePath
		}
		if call.Value != nil {
			c["value"] = Value(*call.Value)
		}
		calls = append(calls, c)
	}
	doc["function_calls"] = calls

	events := bson.A{}
	for _, ev := range r.Events {
		events = append(events, bson.M{
			"id":       ev.ID,
			"group":    ev.Group,
			"metadata": ev.Metadata,
			"start_ms": int64(ev.StartMs),
			"end_ms":   int64(ev.EndMs),
			"data":     ev.Data,
		})
	}
	doc["events"] = events

	fieldErrors := bson.A{}
	for _, fe := range r.FieldErrors {
		fieldErrors = append(fieldErrors, bson.M{
			"time_ms": int64(fe.TimeMs),
			"object":  int64(fe.Object),
			"group":   fe.Group,
			"field":   fe.Field,
			"error":   fe.Error,
		})
	}
	doc["field_errors"] = fieldErrors

	return doc
}

// UpdateDocuments returns one document per property update, tagged with the
// replay's session id
func UpdateDocuments(r *decoder.Replay) []any {
	docs := make([]any, 0, len(r.Updates))
	for _, u := range r.Updates {
		docs = append(docs, bson.M{
			"session_id": r.SessionID,
			"time_ms":    int64(u.TimeMs),
			"object":     int64(u.Object),
			"group":      u.Group,
			"field":      u.Field,
			"kind":       u.Value.Kind.String(),
			"value":      Value(u.Value),
		})
	}
	return docs
}

func statsDocument(s decoder.Stats) bson.M {
	return bson.M{
		"chunks":         s.Chunks,
		"failed_chunks":  s.FailedChunks,
		"checkpoints":    s.Checkpoints,
		"records":        s.Records,
		"exports":        s.Exports,
		"groups":         s.Groups,
		"decoded":        s.Decoded,
		"skipped":        s.Skipped,
		"unhandled":      s.Unhandled,
		"unresolved":     s.Unresolved,
		"field_errors":   s.FieldErrors,
		"functions":      s.Functions,
		"custom_structs": s.CustomStructs,
		"registry": bson.M{
			"lookups":       uint64Value(s.Registry.Lookups),
			"cache_hits":    uint64Value(s.Registry.CacheHits),
			"negative_hits": uint64Value(s.Registry.NegativeHits),
			"scans":         uint64Value(s.Registry.Scans),
			"resolved":      uint64Value(s.Registry.Resolved),
			"failed":        uint64Value(s.Registry.Failed),
		},
	}
}

// Value converts a decoded value to a BSON-friendly form. Unsigned values
// that do not fit in an int64 are stored as decimal strings.
func Value(v property.Value) any {
	switch p := v.Interface().(type) {
	case uint64:
		return uint64Value(p)
	case bitreader.Vector:
		return vectorDocument(p)
	case bitreader.Vector2D:
		return bson.M{"x": p.X, "y": p.Y}
	case bitreader.Rotator:
		return rotatorDocument(p)
	case bitreader.Movement:
		m := bson.M{
			"rep_physics":      p.RepPhysics,
			"has_acceleration": p.HasAcceleration,
			"rotation":         rotatorDocument(p.Rotation),
			"velocity":         vectorDocument(p.Velocity),
			"location":         vectorDocument(p.Location),
		}
		if p.RepPhysics {
			m["simulated_physic_sleep"] = p.SimulatedPhysicSleep
		}
		if p.HasAcceleration {
			m["acceleration"] = vectorDocument(p.Acceleration)
		}
		return m
	default:
		return p
	}
}

func uint64Value(u uint64) any {
	if u > math.MaxInt64 {
		return strconv.FormatUint(u, 10)
	}
	return int64(u)
}

func vectorDocument(v bitreader.Vector) bson.M {
	return bson.M{"x": v.X, "y": v.Y, "z": v.Z}
}

func rotatorDocument(r bitreader.Rotator) bson.M {
	return bson.M{"pitch": r.Pitch, "yaw": r.Yaw, "roll": r.Roll}
}
