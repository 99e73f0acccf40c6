package decoder

import (
	"errors"
	"fmt"

	"github.com/fsnow/replay-decoder/pkg/bitreader"
	"github.com/fsnow/replay-decoder/pkg/netcache"
	"github.com/fsnow/replay-decoder/pkg/property"
	"github.com/fsnow/replay-decoder/pkg/schema"
)

// Record types of a decompressed replay data stream
const (
	RecordEnd        uint32 = 0
	RecordNetGUID    uint32 = 1
	RecordGroup      uint32 = 2
	RecordActorOpen  uint32 = 3
	RecordProperties uint32 = 4
	RecordFunction   uint32 = 5
)

// ErrUnknownRecord is returned for a record type outside the known set. The
// stream cannot be resynchronised after it.
var ErrUnknownRecord = errors.New("unknown record type")

// DecodeStream decodes one decompressed record stream. timeMs stamps the
// updates it produces.
func (s *Session) DecodeStream(data []byte, timeMs uint32) error {
	r := bitreader.New(data, bitreader.WithNameTable(s.names))

	for !r.AtEnd() {
		recordType, err := r.ReadPackedUint()
		if err != nil {
			return fmt.Errorf("record header at bit %d: %w", r.Position(), err)
		}
		if recordType == RecordEnd {
			return nil
		}
		s.out.Stats.Records++

		switch recordType {
		case RecordNetGUID:
			err = s.readNetGUID(r)
		case RecordGroup:
			err = s.readGroup(r)
		case RecordActorOpen:
			err = s.readActorOpen(r)
		case RecordProperties:
			err = s.readProperties(r, timeMs)
		case RecordFunction:
			err = s.readFunction(r, timeMs)
		default:
			err = fmt.Errorf("%w: %d", ErrUnknownRecord, recordType)
		}
		if err != nil {
			return fmt.Errorf("record %d at bit %d: %w", recordType, r.Position(), err)
		}
	}
	return nil
}

func (s *Session) readNetGUID(r *bitreader.BitReader) error {
	handle, err := r.ReadPackedUint()
	if err != nil {
		return err
	}
	rawFlags, err := r.ReadByte()
	if err != nil {
		return err
	}
	flags := netcache.ExportFlags(rawFlags)
	s.out.Stats.Exports++

	if flags.HasPath() {
		outer, err := r.ReadPackedUint()
		if err != nil {
			return err
		}
		path, err := r.ReadString()
		if err != nil {
			return err
		}
		if outer != 0 {
			if outerPath, ok := s.registry.PathName(outer); ok {
				path = outerPath + "." + path
			}
		}
		s.registry.RegisterPath(handle, path)
	}

	if flags.HasNetworkChecksum() {
		if _, err := r.ReadUint32(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) readGroup(r *bitreader.BitReader) error {
	index, err := r.ReadPackedUint()
	if err != nil {
		return err
	}
	path, err := r.ReadString()
	if err != nil {
		return err
	}
	count, err := r.ReadPackedUint()
	if err != nil {
		return err
	}

	known, ok := s.table.Lookup(path)
	mode := netcache.ParseModeIgnore
	if ok {
		mode = known.ParseMode
	}
	group := netcache.NewExportGroup(path, index, mode)
	if ok {
		group.Class = known.Path
		group.PlayerController = known.PlayerController
	}

	for i := uint32(0); i < count; i++ {
		handle, err := r.ReadPackedUint()
		if err != nil {
			return err
		}
		checksum, err := r.ReadUint32()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		group.AddField(s.bindField(known, name, handle, checksum))
	}

	s.registry.Register(path, group)
	s.out.Stats.Groups++
	s.logger.Debug("[decoder] group declared",
		"path", path,
		"index", index,
		"fields", count,
		"known", ok)
	return nil
}

// bindField attaches the table's encoding to a declared field
func (s *Session) bindField(known *schema.Group, name string, handle, checksum uint32) *netcache.ExportedField {
	field := &netcache.ExportedField{
		Name:         name,
		Handle:       handle,
		Checksum:     checksum,
		MinParseMode: schema.DefaultParseMode,
	}
	if known == nil {
		return field
	}
	entry, ok := known.Field(name)
	if !ok {
		return field
	}
	field.Descriptor = entry.Descriptor
	field.MinParseMode = entry.ParseMode
	field.IsFunction = entry.IsFunction
	field.IsCustomStruct = entry.IsCustomStruct
	field.EnableChecksum = entry.EnableChecksum
	field.PathName = entry.TypePath
	return field
}

func (s *Session) readActorOpen(r *bitreader.BitReader) error {
	object, err := r.ReadPackedUint()
	if err != nil {
		return err
	}
	archetype, err := r.ReadPackedUint()
	if err != nil {
		return err
	}
	hasIndex, err := r.ReadBit()
	if err != nil {
		return err
	}

	var (
		group *netcache.ExportGroup
		ok    bool
	)
	if hasIndex {
		index, err := r.ReadPackedUint()
		if err != nil {
			return err
		}
		group, ok = s.registry.GroupByIndex(index)
	} else {
		group, ok = s.registry.ResolveGroup(archetype)
	}

	obj := s.out.object(object)
	obj.Archetype = archetype
	if !ok {
		delete(s.groups, object)
		s.logger.Debug("[decoder] actor without group", "object", object, "archetype", archetype)
		return nil
	}
	s.groups[object] = group
	obj.Group = group.PathName
	obj.PlayerController = group.PlayerController
	return nil
}

// groupFor returns the group of an object: the one it was opened with, or a
// fuzzy resolution of its handle
func (s *Session) groupFor(object uint32) (*netcache.ExportGroup, bool) {
	if group, ok := s.groups[object]; ok {
		return group, true
	}
	return s.registry.ResolveGroup(object)
}

func (s *Session) readProperties(r *bitreader.BitReader, timeMs uint32) error {
	object, err := r.ReadPackedUint()
	if err != nil {
		return err
	}
	group, ok := s.groupFor(object)

	for {
		more, err := r.ReadBit()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		handle, err := r.ReadPackedUint()
		if err != nil {
			return err
		}
		if err := s.readField(r, timeMs, object, group, ok, handle, false); err != nil {
			return err
		}
	}
}

func (s *Session) readFunction(r *bitreader.BitReader, timeMs uint32) error {
	object, err := r.ReadPackedUint()
	if err != nil {
		return err
	}
	handle, err := r.ReadPackedUint()
	if err != nil {
		return err
	}

	var cache *netcache.ExportGroup
	group, ok := s.groupFor(object)
	if ok {
		cache, ok = s.registry.ResolveClassNetCache(group.PathName, false)
		if !ok {
			cache, ok = s.registry.ResolveClassNetCache(group.PathName, true)
		}
	}
	return s.readField(r, timeMs, object, cache, ok, handle, true)
}

// readField consumes one framed field: a packed bit length followed by the
// payload. The payload is decoded from a bounded view so the stream stays
// aligned whatever happens to the value.
func (s *Session) readField(r *bitreader.BitReader, timeMs, object uint32, group *netcache.ExportGroup, haveGroup bool, handle uint32, rpc bool) error {
	numBits, err := r.ReadPackedUint()
	if err != nil {
		return err
	}
	payload, err := r.SubReader(int(numBits))
	if err != nil {
		return err
	}

	if !haveGroup {
		s.out.Stats.Unresolved++
		s.observer.FieldDone("", FieldUnresolved)
		s.logger.Debug("[decoder] unresolved object", "object", object, "field", handle)
		return nil
	}

	field, ok := group.Field(handle)
	if !ok {
		s.out.Stats.Unresolved++
		s.observer.FieldDone(fieldLabel(group), FieldUnresolved)
		s.logger.Debug("[decoder] unknown field handle", "group", group.PathName, "field", handle)
		return nil
	}

	if !group.WillRead(s.mode) || !field.WillRead(s.mode) {
		s.out.Stats.Skipped++
		s.observer.FieldDone(fieldLabel(group), FieldSkipped)
		return nil
	}

	value, handled, err := property.Decode(field.Descriptor, payload)
	if err != nil {
		s.out.Stats.FieldErrors++
		s.out.FieldErrors = append(s.out.FieldErrors, FieldError{
			TimeMs: timeMs,
			Object: object,
			Group:  group.PathName,
			Field:  field.Name,
			Error:  err.Error(),
		})
		s.observer.FieldDone(fieldLabel(group), FieldFailed)
		return nil
	}

	if rpc && field.IsFunction {
		call := FunctionCall{
			TimeMs:   timeMs,
			Object:   object,
			Group:    group.PathName,
			Function: field.Name,
			TypePath: field.PathName,
		}
		if handled {
			call.Value = &value
		}
		s.out.FunctionCalls = append(s.out.FunctionCalls, call)
		s.out.Stats.Functions++
		s.observer.FieldDone(fieldLabel(group), FieldFunctionCall)
		return nil
	}

	if !handled {
		s.out.Stats.Unhandled++
		if field.IsCustomStruct {
			s.out.Stats.CustomStructs++
			s.logger.Debug("[decoder] custom struct skipped",
				"group", group.PathName,
				"field", field.Name,
				"type", field.PathName)
		}
		s.observer.FieldDone(fieldLabel(group), FieldUnhandled)
		return nil
	}

	obj := s.out.object(object)
	if obj.Group == "" {
		obj.Group = group.PathName
	}
	obj.Properties[field.Name] = value
	s.out.Updates = append(s.out.Updates, Update{
		TimeMs: timeMs,
		Object: object,
		Group:  group.PathName,
		Field:  field.Name,
		Value:  value,
	})
	s.out.Stats.Decoded++
	s.observer.FieldDone(fieldLabel(group), FieldDecoded)
	return nil
}

// fieldLabel names a group by its field table class so observers see a
// bounded set of values
func fieldLabel(g *netcache.ExportGroup) string {
	if g.Class != "" {
		return g.Class
	}
	return UnknownClass
}
