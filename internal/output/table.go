package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// TableFormatter outputs data in human-readable table format.
type TableFormatter struct{}

// WriteSummaries writes one row per decoded file followed by totals.
func (f *TableFormatter) WriteSummaries(w io.Writer, summaries []ReplaySummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tNAME\tLENGTH\tCHUNKS\tOBJECTS\tDECODED\tSKIPPED\tUNRESOLVED\tERRORS\tELAPSED\tSTATUS")

	var total ReplaySummary
	for _, s := range summaries {
		status := "ok"
		if s.Error != "" {
			status = s.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.File,
			s.Name,
			formatMs(s.LengthMs),
			humanize.Comma(int64(s.Stats.Chunks)),
			humanize.Comma(int64(s.Objects)),
			humanize.Comma(int64(s.Stats.Decoded)),
			humanize.Comma(int64(s.Stats.Skipped)),
			humanize.Comma(int64(s.Stats.Unresolved)),
			humanize.Comma(int64(s.Stats.FieldErrors)),
			s.Elapsed.Round(time.Millisecond),
			status,
		)
		total.Stats.Chunks += s.Stats.Chunks
		total.Objects += s.Objects
		total.Stats.Decoded += s.Stats.Decoded
		total.Stats.Skipped += s.Stats.Skipped
		total.Stats.Unresolved += s.Stats.Unresolved
		total.Stats.FieldErrors += s.Stats.FieldErrors
		total.Elapsed += s.Elapsed
	}

	if len(summaries) > 1 {
		fmt.Fprintf(tw, "TOTAL (%d files)\t\t\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			len(summaries),
			humanize.Comma(int64(total.Stats.Chunks)),
			humanize.Comma(int64(total.Objects)),
			humanize.Comma(int64(total.Stats.Decoded)),
			humanize.Comma(int64(total.Stats.Skipped)),
			humanize.Comma(int64(total.Stats.Unresolved)),
			humanize.Comma(int64(total.Stats.FieldErrors)),
			total.Elapsed.Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

func formatMs(ms uint32) string {
	if ms == 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).String()
}

// WriteFileInfo writes the header and the chunk table of a replay file.
func (f *TableFormatter) WriteFileInfo(w io.Writer, info FileInfo) error {
	fmt.Fprintln(w, "Replay Header")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "File:            %s\n", info.File)
	if h := info.Header; h != nil {
		fmt.Fprintf(w, "Name:            %s\n", h.FriendlyName)
		fmt.Fprintf(w, "Length:          %s\n", formatMs(h.LengthInMs))
		fmt.Fprintf(w, "File Version:    %d\n", h.FileVersion)
		fmt.Fprintf(w, "Network Version: %d\n", h.NetworkVersion)
		fmt.Fprintf(w, "Changelist:      %d\n", h.Changelist)
		fmt.Fprintf(w, "Live:            %t\n", h.IsLive)
		fmt.Fprintf(w, "Compressed:      %t\n", h.IsCompressed)
	}

	var totalSize int
	for _, c := range info.Chunks {
		totalSize += c.Size
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Chunks (%s total, %s):\n",
		humanize.Comma(int64(len(info.Chunks))),
		humanize.Bytes(uint64(totalSize)))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tTYPE\tOFFSET\tSIZE\tTIME\tDETAIL")
	for _, c := range info.Chunks {
		timeRange := "-"
		if c.StartMs != 0 || c.EndMs != 0 {
			timeRange = fmt.Sprintf("%d-%d ms", c.StartMs, c.EndMs)
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%s\n",
			c.Index,
			c.Type,
			humanize.Comma(c.Offset),
			c.SizeHuman,
			timeRange,
			c.Detail,
		)
	}
	return tw.Flush()
}

// WriteSchema writes every group of the field table with its fields.
func (f *TableFormatter) WriteSchema(w io.Writer, groups []SchemaGroup) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tFIELD\tKIND\tPARSE_MODE")
	for _, g := range groups {
		label := g.Path
		if g.ClassNetCache {
			label += " (rpc)"
		}
		fmt.Fprintf(tw, "%s\t\t\t%s\n", label, g.ParseMode)
		for _, field := range g.Fields {
			kind := field.Kind
			if field.IsFunction {
				kind += " fn"
			}
			fmt.Fprintf(tw, "\t%s\t%s\t%s\n", field.Name, kind, field.ParseMode)
		}
	}
	return tw.Flush()
}
