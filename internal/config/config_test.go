package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsnow/replay-decoder/pkg/decoder"
	"github.com/fsnow/replay-decoder/pkg/netcache"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, netcache.ParseModeMinimal, cfg.ParseMode)
	assert.Equal(t, decoder.ChunkErrorAbort, cfg.ChunkErrorPolicy)
	assert.GreaterOrEqual(t, cfg.Workers, 1)

	d, err := cfg.Decompressor()
	require.NoError(t, err)
	assert.Equal(t, "lz4", d.Name())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
parse_mode = "debug"
codec = "zstd"
chunk_error_policy = "skip"
workers = 3

[log]
level = "debug"
format = "json"

[mongo]
uri = "mongodb://localhost:27017"
collection = "matches"
updates = true
connect_timeout = "2s"
`))
	require.NoError(t, err)

	assert.Equal(t, netcache.ParseModeDebug, cfg.ParseMode)
	assert.Equal(t, "zstd", cfg.Codec)
	assert.Equal(t, decoder.ChunkErrorSkip, cfg.ChunkErrorPolicy)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "matches", cfg.Mongo.Collection)
	assert.Equal(t, "replays", cfg.Mongo.Database)
	assert.Equal(t, 1000, cfg.Mongo.UpdateBatchSize)
	assert.True(t, cfg.Mongo.Updates)

	timeout, err := cfg.Mongo.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, timeout)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"bad mode", `parse_mode = "verbose"`},
		{"bad policy", `chunk_error_policy = "retry"`},
		{"bad codec", `codec = "oodle"`},
		{"no workers", `workers = 0`},
		{"bad level", "[log]\nlevel = \"loud\""},
		{"bad format", "[log]\nformat = \"xml\""},
		{"bad timeout", "[mongo]\nconnect_timeout = \"soon\""},
		{"not toml", `parse_mode = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "extra.toml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`
[[group]]
path = "/Game/Athena/PlayerPawn.PlayerPawn_Athena_C"
parse_mode = "normal"

  [[group.field]]
  name = "Health"
  kind = "float"
`), 0o644))

	cfgPath := filepath.Join(dir, "decode.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`schema_file = "`+filepath.ToSlash(schemaPath)+`"`), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	table, err := cfg.Schema()
	require.NoError(t, err)
	_, ok := table.Lookup("/Game/Athena/PlayerPawn.PlayerPawn_Athena_C")
	assert.True(t, ok)
	_, ok = table.Lookup("/Script/Engine.PlayerState")
	assert.True(t, ok)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("[test] hidden")
	logger.Warn("[test] shown", "k", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "[test] shown", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])

	buf.Reset()
	LogConfig{Level: "debug"}.NewLogger(&buf).Debug("[test] text")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
