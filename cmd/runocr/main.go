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
	"github.com/ocrfield/docextract/internal/aggregate"
	"github.com/ocrfield/docextract/internal/common"
	"github.com/ocrfield/docextract/internal/ocr"
	"github.com/ocrfield/docextract/internal/raster"
)

// runocr rasterizes one document and prints the recognized text without
// calling any extraction backend. Useful for checking engine setup and
// inspecting what the model would actually see.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	preview := flag.Bool("preview", false, "render only the first page at preview DPI")
	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-preview] <file.pdf|png|jpg>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	// .env is optional
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	format := constants.MapExtToFormat(filepath.Ext(path))
	if format == "" {
		logger.Error("unsupported file extension", "path", path)
		os.Exit(2)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read input", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rcfg := raster.Config{
		Pdftoppm: cfg.Raster.Pdftoppm,
		DPI:      cfg.Raster.DPI,
		MaxPages: cfg.Raster.MaxPages,
	}
	if *preview {
		rcfg.DPI = raster.PreviewDPI
		rcfg.MaxPages = 1
	}
	rasterizer := raster.NewRasterizer(rcfg, logger)
	adapter := ocr.NewAdapter(ocr.Config{
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)

	start := time.Now()
	pages, err := rasterizer.Rasterize(ctx, data, format)
	if err != nil {
		logger.Error("rasterization failed", "error", err)
		os.Exit(1)
	}

	results := make([]ocr.PageResult, 0, len(pages))
	for _, page := range pages {
		res, err := adapter.Recognize(ctx, page)
		if err != nil {
			logger.Error("recognition failed", "page", page.Index, "error", err)
			os.Exit(1)
		}
		results = append(results, res)
	}

	text := aggregate.Join(results, len(pages))
	okPages := 0
	for _, r := range results {
		if r.Status == ocr.StatusOK {
			okPages++
		}
	}

	logger.Info("recognition OK",
		"pages", len(pages),
		"pages_ok", okPages,
		"bytes", len(text.Combined),
		"confidence", ocr.HeuristicConfidence(text.Combined),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	fmt.Println(text.Combined)
}
