package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fsnow/replay-decoder/internal/output"
	"github.com/fsnow/replay-decoder/pkg/reader"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the header and chunk layout of a replay file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			formatFlag,
			&cli.IntFlag{
				Name:  "hex",
				Usage: "Also dump the first N bytes of the file (table format only)",
			},
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one replay file is required")
	}
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}
	path := c.Args().First()

	rr, err := reader.Open(path)
	if err != nil {
		return err
	}
	defer rr.Close()

	info := output.FileInfo{File: path, Header: rr.Header()}
	for {
		chunk, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("chunk %d: %w", len(info.Chunks), err)
		}
		info.Chunks = append(info.Chunks, output.NewChunkInfo(len(info.Chunks), chunk, rr.Header().IsCompressed))
	}

	if err := formatter.WriteFileInfo(c.App.Writer, info); err != nil {
		return err
	}

	if n := c.Int("hex"); n > 0 && c.String("format") == "table" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "\nHex dump (first %d bytes):\n", min(n, len(data)))
		hexDump(c.App.Writer, data, n)
	}
	return nil
}

// hexDump prints offset, hex bytes and printable characters, 16 per line
func hexDump(w io.Writer, data []byte, limit int) {
	for i := 0; i < limit && i < len(data); i += 16 {
		fmt.Fprintf(w, "%08x  ", i)
		for j := 0; j < 16; j++ {
			if i+j < len(data) && i+j < limit {
				fmt.Fprintf(w, "%02x ", data[i+j])
			} else {
				fmt.Fprint(w, "   ")
			}
			if j == 7 {
				fmt.Fprint(w, " ")
			}
		}
		fmt.Fprint(w, " |")
		for j := 0; j < 16 && i+j < len(data) && i+j < limit; j++ {
			ch := data[i+j]
			if ch >= 32 && ch < 127 {
				fmt.Fprintf(w, "%c", ch)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w, "|")
	}
}
