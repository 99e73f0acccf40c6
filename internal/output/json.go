package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter outputs data in JSON format.
type JSONFormatter struct{}

// WriteSummaries writes the decode summaries as JSON.
func (f *JSONFormatter) WriteSummaries(w io.Writer, summaries []ReplaySummary) error {
	return writeJSON(w, summaries)
}

// WriteFileInfo writes the header and chunk table as JSON.
func (f *JSONFormatter) WriteFileInfo(w io.Writer, info FileInfo) error {
	return writeJSON(w, info)
}

// WriteSchema writes the field table as JSON.
func (f *JSONFormatter) WriteSchema(w io.Writer, groups []SchemaGroup) error {
	return writeJSON(w, groups)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
