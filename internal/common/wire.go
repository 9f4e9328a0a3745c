package common

import (
	"fmt"
	"log/slog"

	"github.com/ocrfield/docextract/internal/llm"
	"github.com/ocrfield/docextract/internal/llm/gemini"
	"github.com/ocrfield/docextract/internal/llm/openai"
	"github.com/ocrfield/docextract/internal/ocr"
	"github.com/ocrfield/docextract/internal/pipeline"
	"github.com/ocrfield/docextract/internal/raster"
	"github.com/ocrfield/docextract/internal/schema"
)

// BuildPipeline wires a full pipeline from configuration. The extraction
// backend is selected by cfg.LLM.Backend; everything else follows the
// config defaults.
func BuildPipeline(cfg *Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	backend, err := BuildExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}
	service := llm.NewService(backend, llm.Config{
		Attempts:       cfg.LLM.Attempts,
		BackoffBase:    cfg.LLM.BackoffBase,
		AttemptTimeout: cfg.LLM.Timeout,
	}, logger)

	rasterizer := raster.NewRasterizer(raster.Config{
		Pdftoppm: cfg.Raster.Pdftoppm,
		DPI:      cfg.Raster.DPI,
		MaxPages: cfg.Raster.MaxPages,
	}, logger)
	recognizer := ocr.NewAdapter(ocr.Config{
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)

	return pipeline.New(rasterizer, recognizer, service, schema.Default(),
		pipeline.Config{Workers: cfg.Pipeline.Workers}, logger), nil
}

// BuildExtractor returns the raw backend client for cfg.LLM.Backend.
func BuildExtractor(cfg *Config, logger *slog.Logger) (llm.Extractor, error) {
	switch cfg.LLM.Backend {
	case "gemini":
		return gemini.NewClient(gemini.Config{
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger), nil
	case "openai":
		return openai.NewClient(openai.Config{
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger), nil
	}
	return nil, fmt.Errorf("unknown LLM backend %q (want gemini or openai)", cfg.LLM.Backend)
}
