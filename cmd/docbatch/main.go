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

	"github.com/ocrfield/docextract/constants"
	"github.com/ocrfield/docextract/internal/common"
	"github.com/ocrfield/docextract/internal/export"
	"github.com/ocrfield/docextract/internal/history"
	"github.com/ocrfield/docextract/internal/ocr"
	"github.com/ocrfield/docextract/internal/pipeline"
	"github.com/ocrfield/docextract/internal/schema"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory to process documents from (required)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		timeout = flag.Duration("timeout", 30*time.Minute, "overall batch deadline")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "documents.xlsx")
	}

	// .env is optional
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	p, err := common.BuildPipeline(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(ctx, cfg.History.Path, logger)
		if err != nil {
			logger.Warn("history unavailable", "error", err)
		} else {
			defer func() {
				if cerr := store.Close(); cerr != nil {
					logger.Warn("close history", "error", cerr)
				}
			}()
		}
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		logger.Error("read directory", "dir", *dir, "error", err)
		os.Exit(1)
	}

	var results []*pipeline.Result
	processed, failures, skipped := 0, 0, 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mimeType := constants.MapExtToMIME(filepath.Ext(entry.Name()))
		if mimeType == "" {
			skipped++
			continue
		}
		path := filepath.Join(*dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read file", "path", path, "error", err)
			failures++
			continue
		}

		logger.Info("processing file", "path", path)
		res, runErr := p.Run(ctx, pipeline.Input{
			Data:     data,
			MIMEType: mimeType,
			Name:     entry.Name(),
		}, cfg.LLM.APIKey)
		results = append(results, res)
		if runErr != nil {
			if ctx.Err() != nil {
				logger.Error("batch deadline exceeded", "error", ctx.Err())
				break
			}
			failures++
		} else {
			processed++
		}
		record(ctx, store, res, logger)
	}

	exportService := export.NewService(schema.Default(), logger)
	xlsxBytes, err := exportService.ResultsXLSX(results)
	if err != nil {
		logger.Error("failed to export results", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_processed", processed,
		"failures", failures,
		"skipped", skipped,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Skipped: %d\n", skipped)
	fmt.Printf("- Output: %s\n", *out)
}

func record(ctx context.Context, store *history.Store, res *pipeline.Result, logger *slog.Logger) {
	if store == nil || res == nil {
		return
	}
	failed := 0
	for _, pg := range res.Aggregated.Pages {
		if pg.Status != ocr.StatusOK {
			failed++
		}
	}
	found := 0
	if res.Fields != nil {
		found = len(res.Fields.Present)
	}
	if err := store.Save(ctx, history.Record{
		RunID:       res.RunID,
		FileName:    res.Name,
		Status:      res.Status,
		Pages:       len(res.Aggregated.Pages),
		PagesFailed: failed,
		FieldsFound: found,
		Confidence:  res.Confidence,
		Error:       res.Error,
		Duration:    res.Duration,
	}); err != nil {
		logger.Warn("record run", "error", err)
	}
}
