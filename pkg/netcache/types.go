package netcache

import (
	"fmt"
	"strings"

	"github.com/fsnow/replay-decoder/pkg/property"
)

// ParseMode is the verbosity gate: groups and fields declare the minimum mode
// they are decoded under
type ParseMode uint8

const (
	// ParseModeIgnore as a declared minimum means never read
	ParseModeIgnore ParseMode = iota
	ParseModeMinimal
	ParseModeNormal
	ParseModeDebug
)

// String returns the lower-case name of the mode
func (m ParseMode) String() string {
	switch m {
	case ParseModeIgnore:
		return "ignore"
	case ParseModeMinimal:
		return "minimal"
	case ParseModeNormal:
		return "normal"
	case ParseModeDebug:
		return "debug"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseModeFromString parses ignore, minimal, normal or debug
func ParseModeFromString(s string) (ParseMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore":
		return ParseModeIgnore, nil
	case "minimal":
		return ParseModeMinimal, nil
	case "normal":
		return ParseModeNormal, nil
	case "debug":
		return ParseModeDebug, nil
	default:
		return ParseModeIgnore, fmt.Errorf("unknown parse mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (m ParseMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *ParseMode) UnmarshalText(text []byte) error {
	parsed, err := ParseModeFromString(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ShouldRead reports whether an item declaring minimum min is read under m
func (m ParseMode) ShouldRead(min ParseMode) bool {
	return min != ParseModeIgnore && m >= min
}

// ExportFlags selects the optional parts of a net-guid export declaration
type ExportFlags uint8

const (
	ExportFlagsNone                      ExportFlags = 0
	ExportFlagsHasPath                   ExportFlags = 1
	ExportFlagsNoLoad                    ExportFlags = 2
	ExportFlagsHasPathAndNoLoad          ExportFlags = 3
	ExportFlagsHasNetworkChecksum        ExportFlags = 4
	ExportFlagsHasPathAndNetworkChecksum ExportFlags = 5
	ExportFlagsNoLoadAndNetworkChecksum  ExportFlags = 6
	ExportFlagsAll                       ExportFlags = 7
)

// HasPath reports whether an outer handle and path follow
func (f ExportFlags) HasPath() bool {
	return f&ExportFlagsHasPath != 0
}

// NoLoad reports the no-load marker
func (f ExportFlags) NoLoad() bool {
	return f&ExportFlagsNoLoad != 0
}

// HasNetworkChecksum reports whether a checksum follows
func (f ExportFlags) HasNetworkChecksum() bool {
	return f&ExportFlagsHasNetworkChecksum != 0
}

// String returns a human-readable representation of the flags
func (f ExportFlags) String() string {
	if f == ExportFlagsNone {
		return "None"
	}
	if f&^ExportFlagsAll != 0 {
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
	var parts []string
	if f.HasPath() {
		parts = append(parts, "HasPath")
	}
	if f.NoLoad() {
		parts = append(parts, "NoLoad")
	}
	if f.HasNetworkChecksum() {
		parts = append(parts, "HasNetworkChecksum")
	}
	return strings.Join(parts, "|")
}

// ExportedField is one property or RPC entry of an export group
type ExportedField struct {
	Name           string
	Handle         uint32
	Descriptor     property.Descriptor
	MinParseMode   ParseMode
	Checksum       uint32
	IsFunction     bool
	IsCustomStruct bool
	EnableChecksum bool

	// PathName is the type path of a ClassNetCache property
	PathName string
}

// WillRead reports whether the field is decoded under mode
func (f *ExportedField) WillRead(mode ParseMode) bool {
	return mode.ShouldRead(f.MinParseMode)
}

// ExportGroup is the schema of one replicated class or ClassNetCache
type ExportGroup struct {
	PathName      string
	PathNameIndex uint32
	MinParseMode  ParseMode

	// Class is the field table path the group was bound to, empty when the
	// class is not in the table
	Class            string
	PlayerController bool

	fields   []*ExportedField
	byHandle map[uint32]int
	byName   map[string]int
}

// NewExportGroup creates an empty group
func NewExportGroup(pathName string, pathNameIndex uint32, minParseMode ParseMode) *ExportGroup {
	return &ExportGroup{
		PathName:      pathName,
		PathNameIndex: pathNameIndex,
		MinParseMode:  minParseMode,
		byHandle:      make(map[uint32]int),
		byName:        make(map[string]int),
	}
}

// AddField appends a field. A field with an already used handle replaces
// the earlier one in place.
func (g *ExportGroup) AddField(f *ExportedField) {
	if idx, ok := g.byHandle[f.Handle]; ok {
		delete(g.byName, g.fields[idx].Name)
		g.fields[idx] = f
		g.byName[f.Name] = idx
		return
	}
	g.byHandle[f.Handle] = len(g.fields)
	g.byName[f.Name] = len(g.fields)
	g.fields = append(g.fields, f)
}

// Field returns the field with the given wire handle
func (g *ExportGroup) Field(handle uint32) (*ExportedField, bool) {
	idx, ok := g.byHandle[handle]
	if !ok {
		return nil, false
	}
	return g.fields[idx], true
}

// FieldByName returns the field with the given name
func (g *ExportGroup) FieldByName(name string) (*ExportedField, bool) {
	idx, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.fields[idx], true
}

// Fields returns the fields in declaration order
func (g *ExportGroup) Fields() []*ExportedField {
	return g.fields
}

// Len returns the number of fields
func (g *ExportGroup) Len() int {
	return len(g.fields)
}

// WillRead reports whether the group is decoded under mode
func (g *ExportGroup) WillRead(mode ParseMode) bool {
	return mode.ShouldRead(g.MinParseMode)
}

// IsClassNetCache reports whether the group holds RPCs
func (g *ExportGroup) IsClassNetCache() bool {
	return strings.HasSuffix(g.PathName, "ClassNetCache")
}
