package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fsnow/replay-decoder/pkg/bitreader"
)

// Magic is the first uint32 of every replay file
const Magic uint32 = 0x1CA2E27F

// ErrInvalidMagic is returned when a file does not start with Magic
var ErrInvalidMagic = errors.New("not a replay file")

// Header is the file-level information that precedes the chunks
//
// Binary Format (little-endian):
//
//	magic           : uint32 (4 bytes)  - 0x1CA2E27F
//	fileVersion     : uint32 (4 bytes)
//	lengthInMs      : uint32 (4 bytes)  - Replay duration
//	networkVersion  : uint32 (4 bytes)
//	changelist      : uint32 (4 bytes)  - Engine build
//	friendlyName    : FString           - int32 length, then characters (negative = UTF-16LE)
//	isLive          : uint32 (4 bytes)  - Non-zero while still recording
//	isCompressed    : uint32 (4 bytes)  - Non-zero when replay data chunks are compressed
type Header struct {
	FileVersion    uint32
	LengthInMs     uint32
	NetworkVersion uint32
	Changelist     uint32
	FriendlyName   string
	IsLive         bool
	IsCompressed   bool
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*Header, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: magic 0x%08X", ErrInvalidMagic, magic)
	}

	h := &Header{}
	fixed := []*uint32{&h.FileVersion, &h.LengthInMs, &h.NetworkVersion, &h.Changelist}
	for _, field := range fixed {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
	}

	name, err := ReadFString(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read friendly name: %w", err)
	}
	h.FriendlyName = name

	var isLive, isCompressed uint32
	if err := binary.Read(r, binary.LittleEndian, &isLive); err != nil {
		return nil, fmt.Errorf("failed to read live flag: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &isCompressed); err != nil {
		return nil, fmt.Errorf("failed to read compression flag: %w", err)
	}
	h.IsLive = isLive != 0
	h.IsCompressed = isCompressed != 0

	return h, nil
}

// ReadFString reads a byte-aligned length-prefixed string
func ReadFString(r io.Reader) (string, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	if length > bitreader.MaxStringLength || length < -bitreader.MaxStringLength {
		return "", fmt.Errorf("%w: %d", bitreader.ErrInvalidString, length)
	}

	wide := length < 0
	size := int(length)
	if wide {
		size = int(-length) * 2
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return bitreader.DecodeString(raw, wide)
}
