package output

import (
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/fsnow/replay-decoder/pkg/decoder"
	"github.com/fsnow/replay-decoder/pkg/reader"
	"github.com/fsnow/replay-decoder/pkg/schema"
)

// Format represents the output format type.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ReplaySummary is the per-file result of a decode.
type ReplaySummary struct {
	File          string        `json:"file"`
	SessionID     string        `json:"session_id"`
	Name          string        `json:"name"`
	LengthMs      uint32        `json:"length_ms"`
	Compressed    bool          `json:"compressed"`
	Objects       int           `json:"objects"`
	Updates       int           `json:"updates"`
	FunctionCalls int           `json:"function_calls"`
	Events        int           `json:"events"`
	Stats         decoder.Stats `json:"stats"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	Error         string        `json:"error,omitempty"`
}

// Summarize builds the summary of one decoded file. r may be nil when the
// decode failed before producing output.
func Summarize(file string, r *decoder.Replay, elapsed time.Duration, err error) ReplaySummary {
	s := ReplaySummary{File: file, Elapsed: elapsed}
	if err != nil {
		s.Error = err.Error()
	}
	if r == nil {
		return s
	}
	s.SessionID = r.SessionID
	s.Name = r.Name
	if r.Header != nil {
		s.LengthMs = r.Header.LengthInMs
		s.Compressed = r.Header.IsCompressed
	}
	s.Objects = len(r.Objects)
	s.Updates = len(r.Updates)
	s.FunctionCalls = len(r.FunctionCalls)
	s.Events = len(r.Events)
	s.Stats = r.Stats
	return s
}

// ChunkInfo describes one chunk of a replay file.
type ChunkInfo struct {
	Index     int    `json:"index"`
	Type      string `json:"type"`
	Offset    int64  `json:"offset"`
	Size      int    `json:"size"`
	SizeHuman string `json:"size_human"`
	StartMs   uint32 `json:"start_ms,omitempty"`
	EndMs     uint32 `json:"end_ms,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// NewChunkInfo describes c. Replay data and event chunks get their time
// range decoded; a payload that does not parse is reported in Detail.
func NewChunkInfo(index int, c *reader.Chunk, compressed bool) ChunkInfo {
	info := ChunkInfo{
		Index:     index,
		Type:      c.Type.String(),
		Offset:    c.Offset,
		Size:      c.Size(),
		SizeHuman: humanize.Bytes(uint64(c.Size())),
	}
	switch c.Type {
	case reader.ChunkTypeReplayData:
		rd, err := c.ReplayData(compressed)
		if err != nil {
			info.Detail = err.Error()
			break
		}
		info.StartMs, info.EndMs = rd.StartMs, rd.EndMs
		if compressed {
			info.Detail = "compressed " + humanize.Bytes(uint64(rd.CompressedSize)) + " -> " + humanize.Bytes(uint64(rd.DecompressedSize))
		}
	case reader.ChunkTypeEvent:
		ev, err := c.Event()
		if err != nil {
			info.Detail = err.Error()
			break
		}
		info.StartMs, info.EndMs = ev.StartMs, ev.EndMs
		info.Detail = ev.Group + "/" + ev.ID
	}
	return info
}

// FileInfo is the header and chunk layout of a replay file.
type FileInfo struct {
	File   string         `json:"file"`
	Header *reader.Header `json:"header"`
	Chunks []ChunkInfo    `json:"chunks"`
}

// SchemaField is one entry of a field table group.
type SchemaField struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	ParseMode  string `json:"parse_mode"`
	IsFunction bool   `json:"is_function,omitempty"`
}

// SchemaGroup is one group of the field table.
type SchemaGroup struct {
	Path          string        `json:"path"`
	ClassNetCache bool          `json:"class_net_cache"`
	ParseMode     string        `json:"parse_mode"`
	Fields        []SchemaField `json:"fields"`
}

// DescribeSchema flattens a field table for output.
func DescribeSchema(t *schema.Table) []SchemaGroup {
	groups := make([]SchemaGroup, 0, t.Len())
	for _, g := range t.Groups() {
		sg := SchemaGroup{
			Path:          g.Path,
			ClassNetCache: g.ClassNetCache,
			ParseMode:     g.ParseMode.String(),
		}
		for _, f := range g.Fields() {
			sg.Fields = append(sg.Fields, SchemaField{
				Name:       f.Name,
				Kind:       f.Descriptor.Kind.String(),
				ParseMode:  f.ParseMode.String(),
				IsFunction: f.IsFunction,
			})
		}
		groups = append(groups, sg)
	}
	return groups
}

// Formatter is the interface for output formatting.
type Formatter interface {
	WriteSummaries(w io.Writer, summaries []ReplaySummary) error
	WriteFileInfo(w io.Writer, info FileInfo) error
	WriteSchema(w io.Writer, groups []SchemaGroup) error
}

// NewFormatter creates a new formatter for the given format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	default:
		return &TableFormatter{}
	}
}
