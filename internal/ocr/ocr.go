// Package ocr runs text recognition on one rasterized page at a time,
// shelling out to tesseract through the raster.Runner seam.
package ocr

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ocrfield/docextract/internal/pipeerr"
	"github.com/ocrfield/docextract/internal/raster"
)

// Status classifies one page's recognition outcome.
type Status string

const (
	StatusOK            Status = "OK"
	StatusEngineFailure Status = "ENGINE_FAILURE"
)

// PageResult is the recognition outcome for a single page. A failed page
// keeps its index so the surrounding run can continue with the rest.
type PageResult struct {
	PageIndex int
	Text      string
	Status    Status
	Err       string
	Duration  time.Duration
}

// SegmentationMode mirrors tesseract's --psm values we actually use.
// Callers pick "uniform block" for single-field documents and "auto" for
// unknown layouts; this affects text fidelity, not the data model.
const (
	PSMAuto         = 3
	PSMUniformBlock = 6
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language    string // tesseract language profile, default "por"
	PSM         int    // page segmentation mode; 0 = engine default
	OEM         int    // 1 = LSTM; 0 = engine default
	TessdataDir string
}

type Adapter struct {
	cfg    Config
	runner raster.Runner
	logger *slog.Logger
}

func NewAdapter(cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "por"
	}
	return &Adapter{cfg: cfg, runner: raster.ExecRunner{}, logger: logger}
}

// WithRunner swaps the exec Runner. Intended for tests.
func (a *Adapter) WithRunner(run raster.Runner) *Adapter {
	a.runner = run
	return a
}

// Recognize runs OCR on one page. The returned error is non-nil only for
// conditions that abort the whole run: a missing tesseract binary or
// context cancellation. Every other engine failure is folded into the
// PageResult so sibling pages are unaffected.
func (a *Adapter) Recognize(ctx context.Context, page raster.Page) (PageResult, error) {
	start := time.Now()
	res := PageResult{PageIndex: page.Index}

	tmpDir, err := os.MkdirTemp("", "docextract-ocr-*")
	if err != nil {
		res.Status = StatusEngineFailure
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res, nil
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			a.logger.Warn("ocr.tmp.remove_failed", "path", tmpDir, "error", rmErr)
		}
	}()

	in := filepath.Join(tmpDir, "page.png")
	if err := writePNG(in, page); err != nil {
		res.Status = StatusEngineFailure
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res, nil
	}

	args := []string{in, "stdout", "-l", a.cfg.Language}
	if a.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(a.cfg.PSM))
	}
	if a.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(a.cfg.OEM))
	}
	if a.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", a.cfg.TessdataDir)
	}

	// tesseract <page.png> stdout -l <lang>
	out, errb, err := a.runner.Run(ctx, a.cfg.Tesseract, args...)
	res.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if raster.IsBinaryMissing(err) {
			return res, pipeerr.New(pipeerr.StageOCR, pipeerr.OCREngineMissing,
				fmt.Sprintf("%s not installed", a.cfg.Tesseract), err)
		}
		a.logger.Warn("ocr.page.failed",
			"page", page.Index,
			"error", err,
			"stderr", strings.TrimSpace(string(errb)),
		)
		res.Status = StatusEngineFailure
		res.Err = err.Error()
		return res, nil
	}

	res.Status = StatusOK
	res.Text = Normalize(string(out))
	a.logger.Debug("ocr.page.ok",
		"page", page.Index,
		"bytes", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func writePNG(path string, page raster.Page) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create page file: %w", err)
	}
	if err := png.Encode(f, page.Image); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode page: %w", err)
	}
	return f.Close()
}
