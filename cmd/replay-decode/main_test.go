package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsnow/replay-decoder/internal/output"
	"github.com/fsnow/replay-decoder/pkg/bitreader"
	"github.com/fsnow/replay-decoder/pkg/decoder"
	"github.com/fsnow/replay-decoder/pkg/reader"
)

func writeReplay(t *testing.T, path string) {
	t.Helper()
	w := bitreader.NewWriter()
	w.WritePackedUint(decoder.RecordGroup)
	w.WritePackedUint(1)
	w.WriteString("/Script/Engine.PlayerState")
	w.WritePackedUint(1)
	w.WritePackedUint(1)
	w.WriteUint32(0)
	w.WriteName("Score")
	w.WritePackedUint(decoder.RecordActorOpen)
	w.WritePackedUint(5)
	w.WritePackedUint(0)
	w.WriteBit(true)
	w.WritePackedUint(1)
	w.WritePackedUint(decoder.RecordProperties)
	w.WritePackedUint(5)
	w.WriteBit(true)
	w.WritePackedUint(1)
	w.WritePackedUint(32)
	w.WriteFloat32(3)
	w.WriteBit(false)
	w.WritePackedUint(decoder.RecordEnd)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	rw, err := reader.NewWriter(f, &reader.Header{FriendlyName: "cli test", LengthInMs: 1000})
	require.NoError(t, err)
	require.NoError(t, rw.WriteReplayData(&reader.ReplayData{EndMs: 999, Data: w.Bytes()}))
	require.NoError(t, rw.WriteEvent(&reader.Event{ID: "e1", Group: "PlayerElim", StartMs: 10, EndMs: 10}))
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MONGODB_URI", "")
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"replay-decode"}, args...))
	return out.String(), err
}

func TestDecodeCommand(t *testing.T) {
	dir := t.TempDir()
	writeReplay(t, filepath.Join(dir, "a.replay"))
	writeReplay(t, filepath.Join(dir, "b.replay"))

	out, err := runApp(t, "decode", "--format", "json", "--workers", "2", dir)
	require.NoError(t, err)

	var summaries []output.ReplaySummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, "cli test", s.Name)
		assert.Equal(t, 1, s.Stats.Decoded)
		assert.Equal(t, 1, s.Events)
		assert.Empty(t, s.Error)
	}
}

func TestDecodeCommandMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.replay")
	writeReplay(t, path)

	out, err := runApp(t, "decode", "--metrics", "--mode", "debug", path)
	require.NoError(t, err)
	assert.Contains(t, out, "cli test")
	assert.Contains(t, out, "replay_decoder_decodes_total 1")
}

func TestDecodeCommandFailures(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.replay")
	require.NoError(t, os.WriteFile(bad, []byte("not a replay"), 0o644))

	out, err := runApp(t, "decode", bad)
	assert.Error(t, err)
	assert.Contains(t, out, "not a replay file")

	_, err = runApp(t, "decode")
	assert.Error(t, err)

	_, err = runApp(t, "decode", "--mode", "verbose", bad)
	assert.Error(t, err)

	_, err = runApp(t, "decode", "--format", "xml", bad)
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.replay")
	writeReplay(t, path)

	out, err := runApp(t, "inspect", "--hex", "32", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Header")
	assert.Contains(t, out, "ReplayData")
	assert.Contains(t, out, "PlayerElim/e1")
	assert.Contains(t, out, "00000000  7f e2 a2 1c")

	out, err = runApp(t, "inspect", "--format", "json", path)
	require.NoError(t, err)
	var info output.FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Len(t, info.Chunks, 2)
}

func TestSchemaCommand(t *testing.T) {
	out, err := runApp(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "/Script/Engine.Actor")
	assert.Contains(t, out, "ReplicatedMovement")
}

func TestHexDump(t *testing.T) {
	var buf bytes.Buffer
	hexDump(&buf, []byte("ABCDEFGHIJKLMNOPQRS"), 18)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "00000000  41 42"))
	assert.True(t, strings.HasSuffix(lines[0], "|ABCDEFGHIJKLMNOP|"))
	assert.True(t, strings.HasSuffix(lines[1], "|QR|"))
}
