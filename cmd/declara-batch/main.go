package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/colmap"
	"github.com/tmduarte/declara/internal/common"
	"github.com/tmduarte/declara/internal/dedup"
	"github.com/tmduarte/declara/internal/export"
	"github.com/tmduarte/declara/internal/parser"
	"github.com/tmduarte/declara/internal/reconcile"
	"github.com/tmduarte/declara/internal/repository"
	"github.com/tmduarte/declara/internal/summary"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir    = flag.String("dir", "", "directory with portal export spreadsheets (required)")
		year   = flag.Int("year", time.Now().Year()-1, "declaration year")
		out    = flag.String("out", "", "output XLSX file path (defaults to <dir>/declaration.xlsx)")
		policy = flag.String("policy", "skip", "action on semantic duplicates: skip, merge or overwrite")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(*dir, "declaration.xlsx")
	}
	dupPolicy, err := dedup.ParsePolicy(*policy)
	if err != nil {
		printError("Error: --policy must be skip, merge or overwrite\n")
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

	ctx := context.Background()
	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	if err := repository.Migrate(ctx, db, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	records := repository.NewRecordRepository(db, logger)
	engine := dedup.NewEngine(dedup.Config{
		AmountTolerance: decimal.NewFromFloat(cfg.Dedup.AmountTolerance),
		DayWindow:       cfg.Dedup.DayWindow,
	}, records, logger)

	tol := reconcile.Tolerances{
		RateRelative: decimal.NewFromFloat(cfg.Reconcile.RateRelativeTolerance),
		GrossCheck:   decimal.NewFromFloat(cfg.Reconcile.GrossCheckTolerance),
		Rounding:     decimal.NewFromFloat(0.01),
	}
	files := parser.NewFileParser(colmap.DefaultSynonyms(), tol, logger)

	paths, err := spreadsheetPaths(*dir)
	if err != nil {
		logger.Error("failed to list directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		printError("Error: no spreadsheet files in %s\n", *dir)
		os.Exit(1)
	}

	var inserted, skipped, merged, overwritten, rowErrors int
	for _, path := range paths {
		res, err := files.ParseFile(path, *year)
		if err != nil {
			logger.Error("file rejected", "file", path, "error", err)
			continue
		}
		rowErrors += len(res.RowErrors)
		for _, re := range res.RowErrors {
			logger.Warn("row rejected", "file", res.SourceFile, "row", re.Row, "reason", re.Reason)
		}

		for _, rec := range res.Records {
			m, err := engine.FindMatch(ctx, rec)
			if err != nil {
				logger.Error("dedup lookup failed", "file", rec.SourceFile, "row", rec.SourceRow, "error", err)
				os.Exit(1)
			}
			action, keep := dedup.Apply(dupPolicy, m, rec)
			switch action {
			case dedup.ActionInserted:
				inserted++
			case dedup.ActionSkipped:
				skipped++
			case dedup.ActionMerged:
				merged++
			case dedup.ActionOverwritten:
				overwritten++
			}
			if action == dedup.ActionSkipped {
				continue
			}
			if err := records.SaveRecord(ctx, keep); err != nil {
				logger.Error("failed to persist record", "file", rec.SourceFile, "row", rec.SourceRow, "error", err)
				os.Exit(1)
			}
		}
	}
	logger.Info("batch.ingest.done",
		"files", len(paths), "inserted", inserted, "skipped", skipped,
		"merged", merged, "overwritten", overwritten, "row_errors", rowErrors,
	)

	all, err := records.All(ctx)
	if err != nil {
		logger.Error("failed to load records", "error", err)
		os.Exit(1)
	}
	sum := summary.Aggregate(all)
	logger.Info("batch.summary",
		"records", sum.Totals.Count,
		"gross", sum.Totals.Gross.StringFixed(2),
		"withheld", sum.Totals.Withheld.StringFixed(2),
		"net", sum.Totals.Net.StringFixed(2),
		"counterparties", len(sum.ByCounterparty),
		"warnings", sum.WarningCount,
	)

	xlsx, err := export.NewService(records, logger).DeclarationXLSX(ctx, *year)
	if err != nil {
		logger.Error("failed to build declaration", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write declaration", "path", *out, "error", err)
		os.Exit(1)
	}
	fmt.Printf("declaration written to %s (%d records)\n", *out, sum.Totals.Count)
}

func spreadsheetPaths(dir string) ([]string, error) {
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
		if _, ok := constants.SpreadsheetExtensions[ext]; ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
