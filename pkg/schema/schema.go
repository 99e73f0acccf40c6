// Package schema holds the static table of known classes, their field names
// and wire encodings. Replays do not carry encodings, so the decoder binds
// every declared field to an entry of this table.
package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/fsnow/replay-decoder/pkg/netcache"
	"github.com/fsnow/replay-decoder/pkg/property"
)

//go:embed default.toml
var defaultTable []byte

// DefaultParseMode is the minimum parse mode of groups and fields that do
// not declare one
const DefaultParseMode = netcache.ParseModeMinimal

// Field describes one known property or RPC
type Field struct {
	Name       string
	Descriptor property.Descriptor
	ParseMode  netcache.ParseMode

	// ClassNetCache entries only
	IsFunction     bool
	IsCustomStruct bool
	EnableChecksum bool
	TypePath       string
}

// Group is a known class or ClassNetCache
type Group struct {
	Path          string
	ParseMode     netcache.ParseMode
	ClassNetCache bool

	// PlayerController marks the classes whose actors are player controllers
	PlayerController bool

	fields []*Field
	byName map[string]*Field
}

func newGroup(path string, mode netcache.ParseMode, classNetCache bool) *Group {
	return &Group{
		Path:          path,
		ParseMode:     mode,
		ClassNetCache: classNetCache,
		byName:        make(map[string]*Field),
	}
}

// Field returns the entry for a field name
func (g *Group) Field(name string) (*Field, bool) {
	f, ok := g.byName[name]
	return f, ok
}

// Fields returns the entries in table order
func (g *Group) Fields() []*Field {
	return g.fields
}

func (g *Group) addField(f *Field) {
	if _, ok := g.byName[f.Name]; !ok {
		g.fields = append(g.fields, f)
	} else {
		for i, existing := range g.fields {
			if existing.Name == f.Name {
				g.fields[i] = f
			}
		}
	}
	g.byName[f.Name] = f
}

// Table maps class paths to groups. It is read-only once loaded and may be
// shared by concurrent sessions.
type Table struct {
	groups  []*Group
	byPath  map[string]*Group
	byShort map[string]*Group
}

// New creates an empty table
func New() *Table {
	return &Table{
		byPath:  make(map[string]*Group),
		byShort: make(map[string]*Group),
	}
}

type document struct {
	Groups         []groupDoc `toml:"group"`
	ClassNetCaches []groupDoc `toml:"class_net_cache"`
}

type groupDoc struct {
	Path             string     `toml:"path"`
	ParseMode        string     `toml:"parse_mode"`
	PlayerController bool       `toml:"player_controller"`
	Fields           []fieldDoc `toml:"field"`
	Properties       []fieldDoc `toml:"property"`
}

type fieldDoc struct {
	Name                 string `toml:"name"`
	Kind                 string `toml:"kind"`
	ParseMode            string `toml:"parse_mode"`
	EnumBits             int    `toml:"enum_bits"`
	EnumValues           int    `toml:"enum_values"`
	QuantizeRotation     bool   `toml:"quantize_rotation"`
	QuantizeVelocity     bool   `toml:"quantize_velocity"`
	QuantizeAcceleration bool   `toml:"quantize_acceleration"`
	IsFunction           bool   `toml:"is_function"`
	IsCustomStruct       bool   `toml:"is_custom_struct"`
	EnableChecksum       bool   `toml:"enable_checksum"`
	TypePath             string `toml:"type_path"`
}

// Load parses a TOML table
func Load(r io.Reader) (*Table, error) {
	var doc document
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	t := New()
	for _, gd := range doc.Groups {
		g, err := gd.build(false)
		if err != nil {
			return nil, err
		}
		t.add(g)
	}
	for _, gd := range doc.ClassNetCaches {
		g, err := gd.build(true)
		if err != nil {
			return nil, err
		}
		t.add(g)
	}
	return t, nil
}

// LoadFile parses a TOML table from disk
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema: %w", err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Default returns a fresh copy of the built-in table covering the core
// engine classes
func Default() *Table {
	t, err := Load(bytes.NewReader(defaultTable))
	if err != nil {
		panic(fmt.Sprintf("built-in schema is invalid: %v", err))
	}
	return t
}

func parseMode(s string) (netcache.ParseMode, error) {
	if s == "" {
		return DefaultParseMode, nil
	}
	return netcache.ParseModeFromString(s)
}

func (gd groupDoc) build(classNetCache bool) (*Group, error) {
	if gd.Path == "" {
		return nil, fmt.Errorf("schema group without path")
	}
	mode, err := parseMode(gd.ParseMode)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", gd.Path, err)
	}

	g := newGroup(gd.Path, mode, classNetCache)
	g.PlayerController = gd.PlayerController
	entries := gd.Fields
	if classNetCache {
		entries = append(entries, gd.Properties...)
	} else if len(gd.Properties) > 0 {
		return nil, fmt.Errorf("group %s: properties are only valid in class_net_cache tables", gd.Path)
	}

	for _, fd := range entries {
		f, err := fd.build()
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", gd.Path, err)
		}
		g.addField(f)
	}
	return g, nil
}

func (fd fieldDoc) build() (*Field, error) {
	if fd.Name == "" {
		return nil, fmt.Errorf("field without name")
	}

	kind := property.KindUnknown
	if fd.Kind != "" {
		var err error
		if kind, err = property.KindFromString(fd.Kind); err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
	}
	mode, err := parseMode(fd.ParseMode)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fd.Name, err)
	}

	enumBits := fd.EnumBits
	if enumBits == 0 && fd.EnumValues > 0 {
		enumBits = property.EnumBitWidth(fd.EnumValues)
	}
	if kind == property.KindEnum && enumBits == 0 {
		return nil, fmt.Errorf("field %s: enum needs enum_bits or enum_values", fd.Name)
	}

	return &Field{
		Name: fd.Name,
		Descriptor: property.Descriptor{
			Kind:                 kind,
			EnumBits:             enumBits,
			QuantizeRotation:     fd.QuantizeRotation,
			QuantizeVelocity:     fd.QuantizeVelocity,
			QuantizeAcceleration: fd.QuantizeAcceleration,
		},
		ParseMode:      mode,
		IsFunction:     fd.IsFunction,
		IsCustomStruct: fd.IsCustomStruct,
		EnableChecksum: fd.EnableChecksum,
		TypePath:       fd.TypePath,
	}, nil
}

func (t *Table) add(g *Group) {
	if existing, ok := t.byPath[g.Path]; ok {
		existing.ParseMode = g.ParseMode
		existing.ClassNetCache = g.ClassNetCache
		existing.PlayerController = existing.PlayerController || g.PlayerController
		for _, f := range g.fields {
			existing.addField(f)
		}
		return
	}
	t.groups = append(t.groups, g)
	t.byPath[g.Path] = g
	short := netcache.RemoveAllPathPrefixes(g.Path)
	if _, taken := t.byShort[short]; !taken {
		t.byShort[short] = g
	}
}

// Merge copies other's groups into t. Groups present in both take other's
// parse mode, and other's fields replace same-named ones.
func (t *Table) Merge(other *Table) {
	for _, g := range other.groups {
		clone := newGroup(g.Path, g.ParseMode, g.ClassNetCache)
		clone.PlayerController = g.PlayerController
		for _, f := range g.fields {
			copied := *f
			clone.addField(&copied)
		}
		t.add(clone)
	}
}

// Lookup finds the group for a declared path: first by exact path, then by
// the path with its package prefixes stripped
func (t *Table) Lookup(path string) (*Group, bool) {
	if g, ok := t.byPath[path]; ok {
		return g, true
	}
	short := netcache.RemoveAllPathPrefixes(path)
	if g, ok := t.byShort[short]; ok {
		return g, true
	}
	g, ok := t.byPath[short]
	return g, ok
}

// IsPlayerController reports whether path names a player controller class
func (t *Table) IsPlayerController(path string) bool {
	g, ok := t.Lookup(path)
	return ok && g.PlayerController
}

// Groups returns every group in load order
func (t *Table) Groups() []*Group {
	return t.groups
}

// Len returns the number of groups
func (t *Table) Len() int {
	return len(t.groups)
}
