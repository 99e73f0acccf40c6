package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// Writer produces replay files in the layout ReplayReader consumes. It is
// used to build fixtures and to re-pack filtered replays.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter writes the file header and returns a chunk writer
func NewWriter(w io.Writer, h *Header) (*Writer, error) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, Magic)
	binary.Write(buf, binary.LittleEndian, h.FileVersion)
	binary.Write(buf, binary.LittleEndian, h.LengthInMs)
	binary.Write(buf, binary.LittleEndian, h.NetworkVersion)
	binary.Write(buf, binary.LittleEndian, h.Changelist)
	if err := writeFString(buf, h.FriendlyName); err != nil {
		return nil, err
	}
	binary.Write(buf, binary.LittleEndian, boolUint32(h.IsLive))
	binary.Write(buf, binary.LittleEndian, boolUint32(h.IsCompressed))

	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &Writer{w: w}, nil
}

// WriteChunk appends a chunk with the given payload
func (w *Writer) WriteChunk(t ChunkType, payload []byte) error {
	if w.err != nil {
		return w.err
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(t))
	binary.Write(buf, binary.LittleEndian, int32(len(payload)))
	buf.Write(payload)
	if _, err := w.w.Write(buf.Bytes()); err != nil {
		w.err = fmt.Errorf("failed to write %s chunk: %w", t, err)
	}
	return w.err
}

// WriteReplayData appends a replay data chunk
func (w *Writer) WriteReplayData(rd *ReplayData) error {
	return w.WriteChunk(ChunkTypeReplayData, EncodeReplayData(rd))
}

// WriteEvent appends an event chunk
func (w *Writer) WriteEvent(ev *Event) error {
	payload, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return w.WriteChunk(ChunkTypeEvent, payload)
}

// EncodeReplayData builds a replay data payload. For compressed data the
// size fields are taken from rd, CompressedSize defaulting to len(Data).
func EncodeReplayData(rd *ReplayData) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, rd.StartMs)
	binary.Write(buf, binary.LittleEndian, rd.EndMs)
	if !rd.Compressed {
		binary.Write(buf, binary.LittleEndian, uint32(len(rd.Data)))
		buf.Write(rd.Data)
		return buf.Bytes()
	}

	compressedSize := rd.CompressedSize
	if compressedSize == 0 {
		compressedSize = int32(len(rd.Data))
	}
	binary.Write(buf, binary.LittleEndian, uint32(8+len(rd.Data)))
	binary.Write(buf, binary.LittleEndian, rd.DecompressedSize)
	binary.Write(buf, binary.LittleEndian, compressedSize)
	buf.Write(rd.Data)
	return buf.Bytes()
}

// EncodeEvent builds an event payload
func EncodeEvent(ev *Event) ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, s := range []string{ev.ID, ev.Group, ev.Metadata} {
		if err := writeFString(buf, s); err != nil {
			return nil, err
		}
	}
	binary.Write(buf, binary.LittleEndian, ev.StartMs)
	binary.Write(buf, binary.LittleEndian, ev.EndMs)
	binary.Write(buf, binary.LittleEndian, uint32(len(ev.Data)))
	buf.Write(ev.Data)
	return buf.Bytes(), nil
}

func writeFString(buf *bytes.Buffer, s string) error {
	if s == "" {
		return binary.Write(buf, binary.LittleEndian, int32(0))
	}
	narrow, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return fmt.Errorf("string %q is not Latin-1: %w", s, err)
	}
	binary.Write(buf, binary.LittleEndian, int32(len(narrow)+1))
	buf.WriteString(narrow)
	return buf.WriteByte(0)
}

func boolUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
