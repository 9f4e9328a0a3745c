package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/ocrfield/docextract/constants"
	"github.com/ocrfield/docextract/internal/common"
	"github.com/ocrfield/docextract/internal/history"
	"github.com/ocrfield/docextract/internal/ocr"
	"github.com/ocrfield/docextract/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		out     = flag.String("out", "", "output JSON file path (default stdout)")
		timeout = flag.Duration("timeout", 5*time.Minute, "overall run deadline")
		quiet   = flag.Bool("quiet", false, "log warnings and errors only")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		printError("usage: docextract [flags] <file.pdf|png|jpg>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	// .env is optional
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	mimeType := constants.MapExtToMIME(filepath.Ext(path))
	if mimeType == "" {
		printError("unsupported file extension: %s\n", filepath.Ext(path))
		os.Exit(2)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read input", "path", path, "error", err)
		os.Exit(1)
	}

	p, err := common.BuildPipeline(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, runErr := p.Run(ctx, pipeline.Input{
		Data:     data,
		MIMEType: mimeType,
		Name:     filepath.Base(path),
	}, cfg.LLM.APIKey)

	// A fresh context so a timed-out run still gets recorded.
	recordRun(context.Background(), cfg, res, logger)

	enc, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
	if *out == "" {
		fmt.Println(string(enc))
	} else if err := os.WriteFile(*out, enc, 0644); err != nil {
		logger.Error("write output", "path", *out, "error", err)
		os.Exit(1)
	}

	if runErr != nil {
		os.Exit(1)
	}
}

// recordRun appends to the local run log. Failures are logged, never fatal.
func recordRun(ctx context.Context, cfg *common.Config, res *pipeline.Result, logger *slog.Logger) {
	if !cfg.History.Enabled || res == nil {
		return
	}
	store, err := history.Open(ctx, cfg.History.Path, logger)
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("close history", "error", cerr)
		}
	}()

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
