package reader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ChunkType identifies the payload of a chunk
type ChunkType uint32

const (
	// ChunkTypeHeader carries the game's network header
	ChunkTypeHeader ChunkType = 0
	// ChunkTypeReplayData carries (possibly compressed) replicated traffic
	ChunkTypeReplayData ChunkType = 1
	// ChunkTypeCheckpoint carries a state snapshot for seeking
	ChunkTypeCheckpoint ChunkType = 2
	// ChunkTypeEvent carries a game-defined event blob
	ChunkTypeEvent ChunkType = 3
)

// MaxChunkSize bounds the size field of a chunk
const MaxChunkSize = 256 << 20

// ErrInvalidChunk is returned for chunks whose sizes are inconsistent
var ErrInvalidChunk = errors.New("invalid chunk")

// String returns a human-readable string for the chunk type
func (t ChunkType) String() string {
	switch t {
	case ChunkTypeHeader:
		return "Header"
	case ChunkTypeReplayData:
		return "ReplayData"
	case ChunkTypeCheckpoint:
		return "Checkpoint"
	case ChunkTypeEvent:
		return "Event"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// Chunk is one length-prefixed record of a replay file
//
// Binary Format (little-endian):
//
//	type    : uint32 (4 bytes) - ChunkType
//	size    : int32  (4 bytes) - Payload size in bytes
//	payload : []byte (size)
type Chunk struct {
	Type ChunkType

	// Offset is the position of the chunk in the file
	Offset int64

	Payload []byte
}

// Size returns the payload size
func (c *Chunk) Size() int {
	return len(c.Payload)
}

// ReadChunk reads a single chunk from the provided reader
// Returns io.EOF when there are no more chunks to read
func ReadChunk(r io.Reader) (*Chunk, error) {
	chunk := &Chunk{}

	var chunkType uint32
	if err := binary.Read(r, binary.LittleEndian, &chunkType); err != nil {
		// io.EOF here is a clean end of file
		return nil, err
	}
	chunk.Type = ChunkType(chunkType)

	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("failed to read chunk size: %w", noEOF(err))
	}
	if size < 0 || size > MaxChunkSize {
		return nil, fmt.Errorf("%w: %s chunk size %d", ErrInvalidChunk, chunk.Type, size)
	}

	chunk.Payload = make([]byte, size)
	if _, err := io.ReadFull(r, chunk.Payload); err != nil {
		return nil, fmt.Errorf("failed to read %s chunk payload: %w", chunk.Type, noEOF(err))
	}

	return chunk, nil
}

// a chunk cut short is never a clean end of file
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ReplayData is the payload of a ChunkTypeReplayData chunk
//
// Binary Format (little-endian):
//
//	startMs : uint32 (4 bytes)
//	endMs   : uint32 (4 bytes)
//	length  : uint32 (4 bytes) - Bytes that follow
//	data    : []byte (length)
//
// When the replay is compressed, data starts with
//
//	decompressedSize : int32 (4 bytes)
//	compressedSize   : int32 (4 bytes)
//	compressed       : []byte (compressedSize)
type ReplayData struct {
	StartMs uint32
	EndMs   uint32

	Compressed       bool
	DecompressedSize int32
	CompressedSize   int32

	// Data is the compressed block when Compressed is set, the raw stream otherwise
	Data []byte
}

// ReplayData decodes the payload of a replay data chunk
func (c *Chunk) ReplayData(compressed bool) (*ReplayData, error) {
	if c.Type != ChunkTypeReplayData {
		return nil, fmt.Errorf("%w: %s is not a replay data chunk", ErrInvalidChunk, c.Type)
	}

	r := bytes.NewReader(c.Payload)
	rd := &ReplayData{Compressed: compressed}

	var length uint32
	for _, field := range []*uint32{&rd.StartMs, &rd.EndMs, &length} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("%w: replay data header: %v", ErrInvalidChunk, err)
		}
	}
	if int64(length) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: replay data length %d exceeds payload (%d left)", ErrInvalidChunk, length, r.Len())
	}

	if !compressed {
		rd.Data = make([]byte, length)
		if _, err := io.ReadFull(r, rd.Data); err != nil {
			return nil, fmt.Errorf("%w: replay data: %v", ErrInvalidChunk, err)
		}
		rd.DecompressedSize = int32(length)
		rd.CompressedSize = int32(length)
		return rd, nil
	}

	if length < 8 {
		return nil, fmt.Errorf("%w: compressed replay data too short (%d bytes)", ErrInvalidChunk, length)
	}
	for _, field := range []*int32{&rd.DecompressedSize, &rd.CompressedSize} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("%w: compressed replay data header: %v", ErrInvalidChunk, err)
		}
	}
	if rd.DecompressedSize < 0 || rd.DecompressedSize > MaxChunkSize {
		return nil, fmt.Errorf("%w: decompressed size %d", ErrInvalidChunk, rd.DecompressedSize)
	}
	if rd.CompressedSize < 0 || int64(rd.CompressedSize) > int64(length)-8 {
		return nil, fmt.Errorf("%w: compressed size %d exceeds data length %d", ErrInvalidChunk, rd.CompressedSize, length-8)
	}

	rd.Data = make([]byte, rd.CompressedSize)
	if _, err := io.ReadFull(r, rd.Data); err != nil {
		return nil, fmt.Errorf("%w: compressed replay data: %v", ErrInvalidChunk, err)
	}
	return rd, nil
}

// Event is the payload of a ChunkTypeEvent chunk
//
// Binary Format (little-endian):
//
//	id       : FString
//	group    : FString
//	metadata : FString
//	startMs  : uint32 (4 bytes)
//	endMs    : uint32 (4 bytes)
//	size     : uint32 (4 bytes)
//	data     : []byte (size)
type Event struct {
	ID       string
	Group    string
	Metadata string
	StartMs  uint32
	EndMs    uint32
	Data     []byte
}

// Event decodes the payload of an event chunk
func (c *Chunk) Event() (*Event, error) {
	if c.Type != ChunkTypeEvent {
		return nil, fmt.Errorf("%w: %s is not an event chunk", ErrInvalidChunk, c.Type)
	}

	r := bytes.NewReader(c.Payload)
	ev := &Event{}

	for _, field := range []*string{&ev.ID, &ev.Group, &ev.Metadata} {
		s, err := ReadFString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: event strings: %v", ErrInvalidChunk, err)
		}
		*field = s
	}

	var size uint32
	for _, field := range []*uint32{&ev.StartMs, &ev.EndMs, &size} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("%w: event header: %v", ErrInvalidChunk, err)
		}
	}
	if int64(size) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: event size %d exceeds payload (%d left)", ErrInvalidChunk, size, r.Len())
	}

	ev.Data = make([]byte, size)
	if _, err := io.ReadFull(r, ev.Data); err != nil {
		return nil, fmt.Errorf("%w: event data: %v", ErrInvalidChunk, err)
	}
	return ev, nil
}
