package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/common"
	"github.com/tmduarte/declara/internal/dedup"
	"github.com/tmduarte/declara/internal/extract"
	"github.com/tmduarte/declara/internal/parser"
	"github.com/tmduarte/declara/internal/queue"
	"github.com/tmduarte/declara/internal/reconcile"
	"github.com/tmduarte/declara/internal/repository"
)

func main() {
	var (
		dir    = flag.String("dir", "", "directory with scanned documents to process (required)")
		year   = flag.Int("year", time.Now().Year()-1, "declaration year")
		policy = flag.String("policy", "skip", "action on semantic duplicates: skip, merge or overwrite")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "Error: --dir is required")
		os.Exit(1)
	}
	dupPolicy, err := dedup.ParsePolicy(*policy)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: --policy must be skip, merge or overwrite")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment")
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Extractor.BaseURL == "" {
		logger.Error("EXTRACTOR_URL is required for queue processing")
		os.Exit(1)
	}

	// SIGINT stops workers from claiming further items; documents already in
	// flight finish on their own timeout.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)
	if err := repository.Migrate(ctx, db, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	records := repository.NewRecordRepository(db, logger)
	engine := dedup.NewEngine(dedup.Config{
		AmountTolerance: decimal.NewFromFloat(cfg.Dedup.AmountTolerance),
		DayWindow:       cfg.Dedup.DayWindow,
	}, records, logger)
	extractor := extract.NewClient(extract.ClientConfig{
		BaseURL: cfg.Extractor.BaseURL,
		APIKey:  cfg.Extractor.APIKey,
		Timeout: cfg.Extractor.Timeout,
	}, logger)
	rows := parser.NewRowParser(reconcile.Tolerances{
		RateRelative: decimal.NewFromFloat(cfg.Reconcile.RateRelativeTolerance),
		GrossCheck:   decimal.NewFromFloat(cfg.Reconcile.GrossCheckTolerance),
		Rounding:     decimal.NewFromFloat(0.01),
	}, logger)

	processor := queue.NewProcessor(
		repository.NewQueueStore(db, logger), extractor, rows, logger,
		queue.WithWorkers(cfg.Queue.Workers),
		queue.WithMaxAttempts(cfg.Queue.MaxAttempts),
		queue.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		queue.WithHighConfidenceThreshold(cfg.Queue.HighConfidenceThreshold),
		queue.WithRecordSink(records, engine, dupPolicy),
	)

	refs, err := documentPaths(*dir)
	if err != nil {
		logger.Error("failed to list directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(refs) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no processable documents in %s\n", *dir)
		os.Exit(1)
	}

	res, err := processor.Enqueue(ctx, refs, *year)
	if err != nil {
		logger.Error("enqueue failed", "error", err)
		os.Exit(1)
	}
	logger.Info("batch ready", "batch", res.BatchID, "enqueued", res.Enqueued, "duplicates", res.Duplicates)

	prog, err := processor.ProcessBatch(ctx, res.BatchID)
	if err != nil {
		logger.Error("batch processing failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("batch %s: %d completed, %d failed, %d still pending, %d records extracted\n",
		res.BatchID, prog.Completed, prog.Failed, prog.Pending, prog.ExtractedRecords)
	if prog.Failed > 0 {
		os.Exit(2)
	}
}

func documentPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(e.Name()))
		if _, ok := constants.AllowedUploadExtensions[ext]; ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
