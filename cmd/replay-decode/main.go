package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fsnow/replay-decoder/internal/config"
	"github.com/fsnow/replay-decoder/internal/output"
)

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Value:   "table",
	Usage:   "Output format: table, json",
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to a TOML config file",
}

var schemaFlag = &cli.StringFlag{
	Name:  "schema",
	Usage: "Extra field table (TOML) merged over the built-in one",
}

func getFormatter(c *cli.Context) (output.Formatter, error) {
	format := c.String("format")
	if format != "table" && format != "json" {
		return nil, fmt.Errorf("invalid format %q: must be 'table' or 'json'", format)
	}
	return output.NewFormatter(output.Format(format)), nil
}

// loadConfig reads --config when given and applies the flags that override it
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("schema") {
		cfg.SchemaFile = c.String("schema")
	}
	if c.IsSet("mode") {
		if err := cfg.ParseMode.UnmarshalText([]byte(c.String("mode"))); err != nil {
			return cfg, err
		}
	}
	if c.IsSet("codec") {
		cfg.Codec = c.String("codec")
	}
	if c.IsSet("on-chunk-error") {
		if err := cfg.ChunkErrorPolicy.UnmarshalText([]byte(c.String("on-chunk-error"))); err != nil {
			return cfg, err
		}
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("mongo-uri") {
		cfg.Mongo.URI = c.String("mongo-uri")
	}
	return cfg, cfg.Validate()
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "replay-decode",
		Usage:   "Decode recorded game replays",
		Version: "0.1.0",
		Commands: []*cli.Command{
			decodeCommand(),
			inspectCommand(),
			schemaCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "List the field table used to bind declared fields",
		Flags: []cli.Flag{configFlag, schemaFlag, formatFlag},
		Action: func(c *cli.Context) error {
			formatter, err := getFormatter(c)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			table, err := cfg.Schema()
			if err != nil {
				return err
			}
			return formatter.WriteSchema(c.App.Writer, output.DescribeSchema(table))
		},
	}
}
