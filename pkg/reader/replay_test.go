package reader

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// writeTestReplay writes a replay with a header chunk, two data chunks and an event
func writeTestReplay(t *testing.T, path string, name string) {
	t.Helper()

	buf := new(bytes.Buffer)
	w, err := NewWriter(buf, &Header{FileVersion: 6, FriendlyName: name, LengthInMs: 1000})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	w.WriteChunk(ChunkTypeHeader, []byte{0xaa})
	w.WriteReplayData(&ReplayData{StartMs: 0, EndMs: 500, Data: []byte{1, 2, 3}})
	w.WriteReplayData(&ReplayData{StartMs: 500, EndMs: 1000, Data: []byte{4}})
	if err := w.WriteEvent(&Event{ID: "e1", Group: "stats", Data: []byte{5}}); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func TestReplayReader_Basic(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test.replay")
	writeTestReplay(t, tmpFile, "basic")

	reader, err := Open(tmpFile)
	if err != nil {
		t.Fatalf("Failed to open replay: %v", err)
	}
	defer reader.Close()

	if reader.Header().FriendlyName != "basic" {
		t.Errorf("FriendlyName = %q, want %q", reader.Header().FriendlyName, "basic")
	}
	if reader.Path() != tmpFile {
		t.Errorf("Path() = %v, want %v", reader.Path(), tmpFile)
	}

	chunks := []*Chunk{}
	for {
		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read chunk: %v", err)
		}
		chunks = append(chunks, chunk)
	}

	want := []ChunkType{ChunkTypeHeader, ChunkTypeReplayData, ChunkTypeReplayData, ChunkTypeEvent}
	if len(chunks) != len(want) {
		t.Fatalf("Expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, c := range chunks {
		if c.Type != want[i] {
			t.Errorf("Chunk %d: Type = %v, want %v", i, c.Type, want[i])
		}
	}

	// offsets increase by header + payload size
	for i := 1; i < len(chunks); i++ {
		wantOffset := chunks[i-1].Offset + 8 + int64(chunks[i-1].Size())
		if chunks[i].Offset != wantOffset {
			t.Errorf("Chunk %d: Offset = %v, want %v", i, chunks[i].Offset, wantOffset)
		}
	}

	rd, err := chunks[1].ReplayData(false)
	if err != nil {
		t.Fatalf("ReplayData failed: %v", err)
	}
	if !bytes.Equal(rd.Data, []byte{1, 2, 3}) {
		t.Errorf("Data = %v, want [1 2 3]", rd.Data)
	}

	reader.Close()
	if _, err := reader.Next(); err == nil {
		t.Error("Expected error reading from closed reader, got nil")
	}
}

func TestReplayReader_FromStream(t *testing.T) {
	data := buildTestHeader("stream", false)
	data = append(data, buildTestChunk(ChunkTypeCheckpoint, []byte{1})...)

	reader, err := NewReader(bytes.NewReader(data), "memory")
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	chunk, err := reader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if chunk.Type != ChunkTypeCheckpoint {
		t.Errorf("Type = %v, want %v", chunk.Type, ChunkTypeCheckpoint)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestReplayReader_NotAReplay(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "junk.replay")
	os.WriteFile(tmpFile, []byte("definitely not a replay"), 0644)

	if _, err := Open(tmpFile); err == nil {
		t.Error("Expected error for non-replay file, got nil")
	}
}

func TestReplaySet_MultipleFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestReplay(t, filepath.Join(tmpDir, "b.replay"), "second")
	writeTestReplay(t, filepath.Join(tmpDir, "a.replay"), "first")
	os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("ignored"), 0644)

	rs, err := NewReplaySet(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create ReplaySet: %v", err)
	}

	if rs.FileCount() != 2 {
		t.Errorf("FileCount = %v, want 2", rs.FileCount())
	}

	names := []string{}
	for {
		r, err := rs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to open replay: %v", err)
		}
		names = append(names, r.Header().FriendlyName)
		r.Close()
	}

	if len(names) != 2 || names[0] != "first" || names[1] != "second" {
		t.Errorf("names = %v, want [first second]", names)
	}
}

func TestReplaySet_NoFiles(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := NewReplaySet(tmpDir)
	if err == nil {
		t.Error("Expected error for directory with no .replay files, got nil")
	}
}

func TestReplaySet_NotADirectory(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "notadir.txt")
	os.WriteFile(tmpFile, []byte("test"), 0644)

	_, err := NewReplaySet(tmpFile)
	if err == nil {
		t.Error("Expected error when path is not a directory, got nil")
	}
}
