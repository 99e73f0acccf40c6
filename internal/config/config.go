// Package config holds the replay-decode command configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/fsnow/replay-decoder/pkg/compress"
	"github.com/fsnow/replay-decoder/pkg/decoder"
	"github.com/fsnow/replay-decoder/pkg/netcache"
	"github.com/fsnow/replay-decoder/pkg/schema"
)

// Config : top-level configuration.
type Config struct {
	ParseMode        netcache.ParseMode       `toml:"parse_mode"`
	Codec            string                   `toml:"codec"`
	ChunkErrorPolicy decoder.ChunkErrorPolicy `toml:"chunk_error_policy"`
	SchemaFile       string                   `toml:"schema_file"`
	Workers          int                      `toml:"workers"`
	Log              LogConfig                `toml:"log"`
	Mongo            MongoConfig              `toml:"mongo"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MongoConfig enables the MongoDB sink when URI is set
type MongoConfig struct {
	URI             string `toml:"uri"`
	Database        string `toml:"database"`
	Collection      string `toml:"collection"`
	Updates         bool   `toml:"updates"`
	UpdateBatchSize int    `toml:"update_batch_size"`
	ConnectTimeout  string `toml:"connect_timeout"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		ParseMode:        netcache.ParseModeMinimal,
		Codec:            "lz4",
		ChunkErrorPolicy: decoder.ChunkErrorAbort,
		Workers:          runtime.NumCPU(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Mongo: MongoConfig{
			Database:        "replays",
			Collection:      "replays",
			UpdateBatchSize: 1000,
			ConnectTimeout:  "10s",
		},
	}
}

// Load reads a TOML file over the defaults
func Load(path string) (Config, error) {
	cfgBytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(cfgBytes)
}

// Parse decodes TOML over the defaults and validates the result
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be checked while decoding
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch strings.ToLower(c.Codec) {
	case "lz4", "zstd", "none", "":
	default:
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := c.Mongo.Timeout(); err != nil {
		return err
	}
	return nil
}

// Decompressor returns the configured codec
func (c Config) Decompressor() (compress.Decompressor, error) {
	return compress.ByName(c.Codec)
}

// Schema returns the built-in field table merged with SchemaFile, if set
func (c Config) Schema() (*schema.Table, error) {
	table := schema.Default()
	if c.SchemaFile == "" {
		return table, nil
	}
	extra, err := schema.LoadFile(c.SchemaFile)
	if err != nil {
		return nil, err
	}
	table.Merge(extra)
	return table, nil
}

// Timeout parses ConnectTimeout; empty means the sink default
func (m MongoConfig) Timeout() (time.Duration, error) {
	if m.ConnectTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(m.ConnectTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid mongo connect_timeout: %w", err)
	}
	return d, nil
}

// ParseLevel maps debug, info, warn and error to slog levels
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger builds the slog logger described by the log section
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(l.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
