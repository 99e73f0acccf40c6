// Package decoder drives a full decode pass over a replay: it decompresses
// chunks, feeds declarations into the export registry and dispatches every
// property write to the property codecs.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fsnow/replay-decoder/pkg/bitreader"
	"github.com/fsnow/replay-decoder/pkg/compress"
	"github.com/fsnow/replay-decoder/pkg/netcache"
	"github.com/fsnow/replay-decoder/pkg/reader"
	"github.com/fsnow/replay-decoder/pkg/schema"
)

// ChunkErrorPolicy decides what a chunk-level failure does to the decode
type ChunkErrorPolicy uint8

const (
	// ChunkErrorAbort stops the decode at the first failed chunk
	ChunkErrorAbort ChunkErrorPolicy = iota
	// ChunkErrorSkip logs the failure and continues with the next chunk
	ChunkErrorSkip
)

// String returns "abort" or "skip"
func (p ChunkErrorPolicy) String() string {
	switch p {
	case ChunkErrorAbort:
		return "abort"
	case ChunkErrorSkip:
		return "skip"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// ParseChunkErrorPolicy parses "abort" or "skip"
func ParseChunkErrorPolicy(s string) (ChunkErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "abort", "":
		return ChunkErrorAbort, nil
	case "skip":
		return ChunkErrorSkip, nil
	default:
		return ChunkErrorAbort, fmt.Errorf("unknown chunk error policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (p ChunkErrorPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *ChunkErrorPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseChunkErrorPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ChunkSource yields the chunks of one replay; *reader.ReplayReader is one
type ChunkSource interface {
	Header() *reader.Header
	Next() (*reader.Chunk, error)
}

// Option configures a Session
type Option func(*Session)

// WithParseMode sets the verbosity gate (default minimal)
func WithParseMode(mode netcache.ParseMode) Option {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithDecompressor sets the codec for compressed replays (default LZ4)
func WithDecompressor(d compress.Decompressor) Option {
	return func(s *Session) {
		s.decompressor = d
	}
}

// WithLogger sets the logger; the session id is added to every record
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithObserver registers a progress observer
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

// WithChunkErrorPolicy sets the policy for chunk-level failures
func WithChunkErrorPolicy(p ChunkErrorPolicy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithRegistry makes the session use an existing registry. It is reset at
// the start of every Decode.
func WithRegistry(r *netcache.Registry) Option {
	return func(s *Session) {
		s.registry = r
	}
}

// Session decodes one replay at a time. It owns its registry, name table
// and output and must only be used from one goroutine.
type Session struct {
	id           uuid.UUID
	table        *schema.Table
	registry     *netcache.Registry
	names        *bitreader.NameTable
	mode         netcache.ParseMode
	decompressor compress.Decompressor
	logger       *slog.Logger
	observer     Observer
	policy       ChunkErrorPolicy

	header *reader.Header
	groups map[uint32]*netcache.ExportGroup // object handle -> explicitly opened group
	out    *Replay
}

// NewSession creates a session bound to a field table. A nil table selects
// the built-in one.
func NewSession(table *schema.Table, opts ...Option) *Session {
	if table == nil {
		table = schema.Default()
	}
	s := &Session{
		id:           uuid.New(),
		table:        table,
		names:        bitreader.NewNameTable(),
		mode:         netcache.ParseModeMinimal,
		decompressor: compress.LZ4{},
		logger:       slog.Default(),
		observer:     nopObserver{},
		groups:       make(map[uint32]*netcache.ExportGroup),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = netcache.New()
	}
	s.logger = s.logger.With("session", s.id.String())
	s.out = newReplay(s.id.String())
	return s
}

// ID returns the session id
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Registry returns the session's export registry
func (s *Session) Registry() *netcache.Registry {
	return s.registry
}

// Replay returns the output decoded so far
func (s *Session) Replay() *Replay {
	return s.out
}

// SetHeader sets the file header used by DecodeChunk
func (s *Session) SetHeader(h *reader.Header) {
	s.header = h
	s.out.Header = h
	if h != nil {
		s.out.Name = h.FriendlyName
	}
}

// Reset clears the registry, the name table and the output
func (s *Session) Reset() {
	s.registry.Reset()
	s.names.Reset()
	clear(s.groups)
	s.header = nil
	s.out = newReplay(s.id.String())
}

// Decode runs a full decode pass over src
func (s *Session) Decode(src ChunkSource) (*Replay, error) {
	return s.DecodeContext(context.Background(), src)
}

// DecodeContext runs a full decode pass over src. ctx is checked between
// chunks only; a chunk is never abandoned half way.
func (s *Session) DecodeContext(ctx context.Context, src ChunkSource) (*Replay, error) {
	s.Reset()
	s.SetHeader(src.Header())
	if h := src.Header(); h != nil {
		s.logger.Debug("[decoder] starting decode",
			"name", h.FriendlyName,
			"compressed", h.IsCompressed,
			"mode", s.mode.String())
	}

	defer func() {
		s.out.Stats.Registry = s.registry.Stats()
		s.observer.DecodeDone(s.out.Stats)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return s.out, err
		}

		chunk, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.out, fmt.Errorf("failed to read chunk: %w", err)
		}

		if err := s.DecodeChunk(chunk); err != nil {
			if s.policy == ChunkErrorSkip && isChunkLevel(err) {
				s.logger.Warn("[decoder] skipping chunk",
					"type", chunk.Type.String(),
					"offset", chunk.Offset,
					"error", err)
				continue
			}
			return s.out, err
		}
	}

	s.logger.Debug("[decoder] decode finished",
		"chunks", s.out.Stats.Chunks,
		"decoded", s.out.Stats.Decoded,
		"unresolved", s.out.Stats.Unresolved)
	return s.out, nil
}

// isChunkLevel reports errors confined to one chunk: the registry was not
// touched before they happened
func isChunkLevel(err error) bool {
	return errors.Is(err, compress.ErrDecompress) || errors.Is(err, reader.ErrInvalidChunk)
}

// DecodeChunk decodes a single chunk into the session output
func (s *Session) DecodeChunk(c *reader.Chunk) (err error) {
	start := time.Now()
	s.out.Stats.Chunks++
	defer func() {
		if err != nil {
			s.out.Stats.FailedChunks++
		}
		s.observer.ChunkDone(c.Type, c.Size(), err)
		s.logger.Debug("[decoder] chunk done",
			"type", c.Type.String(),
			"size", c.Size(),
			"duration", time.Since(start))
	}()

	switch c.Type {
	case reader.ChunkTypeHeader:
		return nil
	case reader.ChunkTypeCheckpoint:
		s.out.Stats.Checkpoints++
		return nil
	case reader.ChunkTypeEvent:
		ev, err := c.Event()
		if err != nil {
			return err
		}
		s.out.Events = append(s.out.Events, ev)
		return nil
	case reader.ChunkTypeReplayData:
		return s.decodeReplayData(c)
	default:
		s.logger.Debug("[decoder] ignoring unknown chunk", "type", uint32(c.Type))
		return nil
	}
}

func (s *Session) decodeReplayData(c *reader.Chunk) error {
	compressed := s.header != nil && s.header.IsCompressed
	rd, err := c.ReplayData(compressed)
	if err != nil {
		return err
	}

	data := rd.Data
	if compressed {
		data, err = s.decompressor.Decompress(rd.Data, int(rd.DecompressedSize))
		if err != nil {
			return fmt.Errorf("chunk at offset %d (%d..%d ms): %w", c.Offset, rd.StartMs, rd.EndMs, err)
		}
	}

	if err := s.DecodeStream(data, rd.StartMs); err != nil {
		return fmt.Errorf("chunk at offset %d (%d..%d ms): %w", c.Offset, rd.StartMs, rd.EndMs, err)
	}
	return nil
}
