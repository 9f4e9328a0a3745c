// Package pipeline sequences decode, rasterize, OCR, aggregate, extract
// and validate into one run, isolating per-stage failures and preserving
// the furthest-completed partial state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ocrfield/docextract/constants"
	"github.com/ocrfield/docextract/internal/aggregate"
	"github.com/ocrfield/docextract/internal/llm"
	"github.com/ocrfield/docextract/internal/ocr"
	"github.com/ocrfield/docextract/internal/pipeerr"
	"github.com/ocrfield/docextract/internal/raster"
	"github.com/ocrfield/docextract/internal/schema"
)

// Rasterizer turns input bytes into ordered page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, format constants.Format) ([]raster.Page, error)
}

// Recognizer runs OCR on one page. Only fatal conditions (missing engine,
// cancellation) surface as errors; page-local failures live in PageResult.
type Recognizer interface {
	Recognize(ctx context.Context, page raster.Page) (ocr.PageResult, error)
}

// Extractor is the retrying extraction client (llm.Service).
type Extractor interface {
	Extract(ctx context.Context, req llm.Request) (string, error)
}

// Input is one document as received from the caller. Owned exclusively by
// the run; nothing is retained after Run returns.
type Input struct {
	Data     []byte
	MIMEType string
	Name     string
}

// Result is what every run produces. Fields and Err are mutually
// exclusive; Aggregated may accompany either, so OCR text survives an
// extraction failure.
type Result struct {
	RunID      string              `json:"run_id"`
	Name       string              `json:"name,omitempty"`
	Status     constants.RunStatus `json:"status"`
	Aggregated aggregate.Text      `json:"aggregated"`
	Confidence float32             `json:"confidence,omitempty"`
	Fields     *schema.Fields      `json:"fields,omitempty"`
	Err        *pipeerr.Error      `json:"-"`
	Error      string              `json:"error,omitempty"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Duration   time.Duration       `json:"duration_ns"`
}

type Config struct {
	Workers int // page OCR parallelism, default runtime.NumCPU()
}

type Pipeline struct {
	rasterizer Rasterizer
	recognizer Recognizer
	extractor  Extractor
	schema     schema.Schema
	cfg        Config
	logger     *slog.Logger
}

func New(r Rasterizer, rec Recognizer, ex Extractor, s schema.Schema, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{
		rasterizer: r,
		recognizer: rec,
		extractor:  ex,
		schema:     s,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one full pipeline invocation. The returned Result is never
// nil and carries whatever completed; the error mirrors Result.Err for
// typed failures and is the bare context error on cancellation.
func (p *Pipeline) Run(ctx context.Context, in Input, credential string) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.New().String(), Name: in.Name, Status: constants.RunStatusFailed}
	log := p.logger.With("run_id", res.RunID, "name", in.Name)

	// The fallback stage and kind tag untyped errors with the stage they
	// actually came from; typed errors keep their own.
	fail := func(err error, stage pipeerr.Stage, kind pipeerr.Kind) (*Result, error) {
		pe := pipeerr.As(err, stage, kind)
		res.Err = pe
		res.Error = pe.Error()
		res.ErrorCode = pe.Code().String()
		res.Duration = time.Since(start)
		log.Error("pipeline.failed",
			"stage", string(pe.Stage), "kind", string(pe.Kind), "code", res.ErrorCode, "error", pe)
		return res, pe
	}

	// Received -> Rasterized. Unsupported types are rejected before any
	// engine is invoked.
	format := constants.MapMIMEToFormat(in.MIMEType)
	if format == "" {
		return fail(pipeerr.New(pipeerr.StageRasterize, pipeerr.UnsupportedFormat,
			fmt.Sprintf("unsupported MIME type: %q", in.MIMEType), nil),
			pipeerr.StageRasterize, pipeerr.UnsupportedFormat)
	}
	pages, err := p.rasterizer.Rasterize(ctx, in.Data, format)
	if err != nil {
		if ctx.Err() != nil {
			res.Duration = time.Since(start)
			return res, ctx.Err()
		}
		return fail(err, pipeerr.StageRasterize, pipeerr.CorruptInput)
	}
	log.Debug("pipeline.rasterized", "pages", len(pages))

	// Rasterized -> Recognized. Pages run concurrently on a bounded pool;
	// results land in an index-addressed slice so completion order never
	// matters.
	results := make([]ocr.PageResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, page := range pages {
		g.Go(func() error {
			r, err := p.recognizer.Recognize(gctx, page)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			res.Duration = time.Since(start)
			return res, ctx.Err()
		}
		// Recognize only errors for fatal engine conditions.
		return fail(err, pipeerr.StageOCR, pipeerr.OCREngineMissing)
	}

	okPages := 0
	for _, r := range results {
		if r.Status == ocr.StatusOK {
			okPages++
		}
	}

	// Recognized -> Aggregated. Pure; cannot fail. Runs before the
	// all-pages-failed check so the caller still sees per-page statuses.
	res.Aggregated = aggregate.Join(results, len(pages))
	res.Confidence = ocr.HeuristicConfidence(res.Aggregated.Combined)
	log.Debug("pipeline.aggregated",
		"pages_ok", okPages,
		"pages_failed", len(pages)-okPages,
		"combined_bytes", len(res.Aggregated.Combined),
	)

	if okPages == 0 {
		return fail(pipeerr.New(pipeerr.StageOCR, pipeerr.AllPagesFailed,
			fmt.Sprintf("recognition failed on all %d pages", len(pages)), nil),
			pipeerr.StageOCR, pipeerr.AllPagesFailed)
	}

	// Valid OCR that found no text is a successful, uninformative run —
	// distinct from both OCR failure and extraction failure. There is
	// nothing to send to the extraction service.
	if res.Aggregated.Combined == "" {
		res.Status = runStatus(okPages, len(pages))
		res.Duration = time.Since(start)
		log.Info("pipeline.done", "status", string(res.Status), "fields", 0, "empty_text", true)
		return res, nil
	}

	// Aggregated -> Extracted.
	raw, err := p.extractor.Extract(ctx, llm.Request{
		Text:       res.Aggregated.Combined,
		Credential: credential,
		Schema:     p.schema,
	})
	if err != nil {
		if ctx.Err() != nil {
			res.Duration = time.Since(start)
			return res, ctx.Err()
		}
		return fail(err, pipeerr.StageExtract, pipeerr.ExtractionTransportError)
	}

	// Extracted -> Validated.
	fields, err := llm.ParseFields(raw, p.schema)
	if err != nil {
		return fail(err, pipeerr.StageValidate, pipeerr.MalformedResponse)
	}

	res.Fields = &fields
	res.Status = runStatus(okPages, len(pages))
	res.Duration = time.Since(start)
	log.Info("pipeline.done",
		"status", string(res.Status),
		"fields", len(fields.Present),
		"missing", len(fields.Missing),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func runStatus(okPages, total int) constants.RunStatus {
	if okPages < total {
		return constants.RunStatusPartial
	}
	return constants.RunStatusSuccess
}
