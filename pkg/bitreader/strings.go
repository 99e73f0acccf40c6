package bitreader

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ReadString reads a length-prefixed string.
//
// The int32 prefix selects the character width: a positive length is a count
// of single-byte (Latin-1) characters, a negative length is a count of
// UTF-16LE code units. Both forms usually carry a NUL terminator, which is
// trimmed.
func (r *BitReader) ReadString() (string, error) {
	length, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	if length > MaxStringLength || length < -MaxStringLength {
		return "", fmt.Errorf("%w: %d", ErrInvalidString, length)
	}

	if length < 0 {
		raw, err := r.ReadBytes(int(-length) * 2)
		if err != nil {
			return "", err
		}
		return DecodeString(raw, true)
	}

	raw, err := r.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	return DecodeString(raw, false)
}

// DecodeString converts raw string bytes to UTF-8. wide selects UTF-16LE,
// otherwise the bytes are Latin-1. Trailing NULs are removed.
func DecodeString(raw []byte, wide bool) (string, error) {
	var (
		out []byte
		err error
	)
	if wide {
		out, err = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	} else {
		out, err = charmap.ISO8859_1.NewDecoder().Bytes(raw)
	}
	if err != nil {
		return "", fmt.Errorf("failed to decode string: %w", err)
	}
	return strings.TrimRight(string(out), "\x00"), nil
}

// ReadName reads either an inline name or a reference into the name table.
// Inline names are registered on first use so later references resolve.
func (r *BitReader) ReadName() (string, error) {
	isReference, err := r.ReadBit()
	if err != nil {
		return "", err
	}

	if isReference {
		index, err := r.ReadPackedUint()
		if err != nil {
			return "", err
		}
		name, ok := r.Names().Lookup(index)
		if !ok {
			return "", fmt.Errorf("%w: %d (table has %d)", ErrUnknownName, index, r.Names().Len())
		}
		return name, nil
	}

	name, err := r.ReadString()
	if err != nil {
		return "", err
	}
	r.Names().Add(name)
	return name, nil
}

// NetID type hash that announces an explicit type name string
const netIDTypeNameFollows = 31

// ReadNetID reads a unique net id.
//
// The leading flags byte marks an encoded id in bit 0. Encoded ids are either
// empty (bit 1) or a size byte followed by raw bytes, returned as hex.
// Otherwise bits 3..7 hold a type hash; hash 31 is followed by a type name
// string, and the id itself is a string.
func (r *BitReader) ReadNetID() (string, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return "", err
	}

	if flags&1 == 1 {
		if flags&2 == 2 {
			return "", nil
		}
		size, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		raw, err := r.ReadBytes(int(size))
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(raw), nil
	}

	if (flags>>3)&0x1f == netIDTypeNameFollows {
		if _, err := r.ReadString(); err != nil {
			return "", err
		}
	}
	return r.ReadString()
}

// NameTable holds the names announced inline so far in one decode session
type NameTable struct {
	names []string
	index map[string]uint32
}

// NewNameTable creates an empty table
func NewNameTable() *NameTable {
	return &NameTable{
		index: make(map[string]uint32),
	}
}

// Add registers name and returns its index. Known names keep their index.
func (t *NameTable) Add(name string) uint32 {
	if idx, ok := t.index[name]; ok {
		return idx
	}
	idx := uint32(len(t.names))
	t.names = append(t.names, name)
	t.index[name] = idx
	return idx
}

// Lookup returns the name at index
func (t *NameTable) Lookup(index uint32) (string, bool) {
	if int(index) >= len(t.names) {
		return "", false
	}
	return t.names[index], true
}

// Index returns the index of a registered name
func (t *NameTable) Index(name string) (uint32, bool) {
	idx, ok := t.index[name]
	return idx, ok
}

// Len returns the number of registered names
func (t *NameTable) Len() int {
	return len(t.names)
}

// Reset empties the table
func (t *NameTable) Reset() {
	t.names = t.names[:0]
	clear(t.index)
}
