package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/fsnow/replay-decoder/internal/config"
	"github.com/fsnow/replay-decoder/internal/output"
	"github.com/fsnow/replay-decoder/pkg/decoder"
	"github.com/fsnow/replay-decoder/pkg/export"
	"github.com/fsnow/replay-decoder/pkg/metrics"
	"github.com/fsnow/replay-decoder/pkg/reader"
	"github.com/fsnow/replay-decoder/pkg/schema"
)

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode replay files or directories of replay files",
		ArgsUsage: "<file-or-dir>...",
		Flags: []cli.Flag{
			configFlag,
			schemaFlag,
			formatFlag,
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Parse mode: minimal, normal, debug",
			},
			&cli.StringFlag{
				Name:  "codec",
				Usage: "Chunk codec: lz4, zstd, none",
			},
			&cli.StringFlag{
				Name:  "on-chunk-error",
				Usage: "What a corrupt chunk does: abort, skip",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Files decoded in parallel",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:    "mongo-uri",
				Usage:   "Store decoded replays in MongoDB",
				EnvVars: []string{"MONGODB_URI"},
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Print decoder metrics after the summary",
			},
		},
		Action: decodeAction,
	}
}

func decodeAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one replay file or directory is required")
	}
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(c.App.ErrWriter)

	table, err := cfg.Schema()
	if err != nil {
		return err
	}
	files, err := collectFiles(c.Args().Slice())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	var sink *export.MongoSink
	if cfg.Mongo.URI != "" {
		timeout, _ := cfg.Mongo.Timeout()
		var opts []export.SinkOption
		if cfg.Mongo.Updates {
			opts = append(opts, export.WithUpdates(cfg.Mongo.UpdateBatchSize))
		}
		sink, err = export.NewMongoSink(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, timeout, opts...)
		if err != nil {
			return err
		}
		defer sink.Close(context.Background())
		logger.Info("[main] storing replays in MongoDB",
			"database", cfg.Mongo.Database,
			"collection", cfg.Mongo.Collection)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	summaries := make([]output.ReplaySummary, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i, file := range files {
		g.Go(func() error {
			start := time.Now()
			replay, err := decodeFile(ctx, cfg, table, collector, logger, file)
			if err == nil && sink != nil {
				var res *export.Result
				res, err = sink.Write(ctx, replay)
				if err == nil {
					logger.Debug("[main] replay stored", "file", file, "result", res.String())
				}
			}
			if err != nil {
				logger.Error("[main] decode failed", "file", file, "error", err)
			}
			summaries[i] = output.Summarize(file, replay, time.Since(start), err)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := formatter.WriteSummaries(c.App.Writer, summaries); err != nil {
		return err
	}
	if c.Bool("metrics") {
		if err := metrics.WriteText(c.App.Writer, reg); err != nil {
			return err
		}
	}

	failed := 0
	for _, s := range summaries {
		if s.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d replays failed", failed, len(summaries))
	}
	return nil
}

func decodeFile(ctx context.Context, cfg config.Config, table *schema.Table, obs decoder.Observer, logger *slog.Logger, file string) (*decoder.Replay, error) {
	rr, err := reader.Open(file)
	if err != nil {
		return nil, err
	}
	defer rr.Close()

	decompressor, err := cfg.Decompressor()
	if err != nil {
		return nil, err
	}
	if closer, ok := decompressor.(interface{ Close() }); ok {
		defer closer.Close()
	}

	session := decoder.NewSession(table,
		decoder.WithParseMode(cfg.ParseMode),
		decoder.WithDecompressor(decompressor),
		decoder.WithChunkErrorPolicy(cfg.ChunkErrorPolicy),
		decoder.WithObserver(obs),
		decoder.WithLogger(logger.With("file", file)),
	)
	return session.DecodeContext(ctx, rr)
}

// collectFiles expands directories to the replay files they contain
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		set, err := reader.NewReplaySet(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, set.Files()...)
	}
	return files, nil
}
