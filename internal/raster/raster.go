// Package raster turns input bytes plus a declared format into an ordered
// sequence of page images. Images are decoded in-process; PDFs are rendered
// by poppler's pdftoppm through the Runner seam.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ocrfield/docextract/constants"
	"github.com/ocrfield/docextract/internal/pipeerr"
)

// Recognition wants high fidelity; previews can trade fidelity for speed.
const (
	DefaultDPI = 300
	PreviewDPI = 150
)

// Page is one rasterized page. Index is the authoritative 0-based ordering
// and is never reassigned after creation.
type Page struct {
	Index  int
	Image  *image.RGBA
	Width  int
	Height int
	DPI    int
}

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI, default 300
	MaxPages int    // 0 = no limit
}

type Rasterizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger

	// pdfPageCount is swappable in tests; defaults to pdfcpu.
	pdfPageCount func(path string) (int, error)
}

func NewRasterizer(cfg Config, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	return &Rasterizer{
		cfg:          cfg,
		runner:       ExecRunner{},
		logger:       logger,
		pdfPageCount: api.PageCountFile,
	}
}

// WithRunner swaps the exec Runner. Intended for tests.
func (r *Rasterizer) WithRunner(run Runner) *Rasterizer {
	r.runner = run
	return r
}

// Rasterize decodes the input into page images in document order.
// Exactly one page for a plain image; one per physical page for a PDF.
func (r *Rasterizer) Rasterize(ctx context.Context, data []byte, format constants.Format) ([]Page, error) {
	switch format {
	case constants.IMAGE:
		return r.rasterizeImage(data)
	case constants.PDF:
		return r.rasterizePDF(ctx, data)
	default:
		return nil, pipeerr.New(pipeerr.StageRasterize, pipeerr.UnsupportedFormat,
			fmt.Sprintf("unsupported format: %q", format), nil)
	}
}

// rasterizeImage decodes once and normalizes the color model to RGBA so
// downstream OCR always sees one canonical pixel format, regardless of
// source encoding (paletted, grayscale, alpha).
func (r *Rasterizer) rasterizeImage(data []byte) ([]Page, error) {
	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, pipeerr.New(pipeerr.StageRasterize, pipeerr.CorruptInput, "decode image", err)
	}
	rgba := toRGBA(img)
	b := rgba.Bounds()
	r.logger.Debug("raster.image.ok", "codec", kind, "width", b.Dx(), "height", b.Dy())
	return []Page{{
		Index:  0,
		Image:  rgba,
		Width:  b.Dx(),
		Height: b.Dy(),
		DPI:    72,
	}}, nil
}

func (r *Rasterizer) rasterizePDF(ctx context.Context, data []byte) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "docextract-pp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			r.logger.Warn("raster.tmp.remove_failed", "path", tmpDir, "error", rmErr)
		}
	}()

	in := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	count, err := r.pdfPageCount(in)
	if err != nil {
		return nil, pipeerr.New(pipeerr.StageRasterize, pipeerr.CorruptInput, "read pdf", err)
	}
	if count == 0 {
		return nil, pipeerr.New(pipeerr.StageRasterize, pipeerr.RasterizationEmpty,
			"pdf contains no pages", nil)
	}

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(r.cfg.DPI), "-png"}
	if r.cfg.MaxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(r.cfg.MaxPages))
	}
	args = append(args, in, prefix)

	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	if _, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if IsBinaryMissing(err) {
			return nil, pipeerr.New(pipeerr.StageRasterize, pipeerr.RasterizationEngineMissing,
				fmt.Sprintf("%s not installed", r.cfg.Pdftoppm), err)
		}
		return nil, pipeerr.New(pipeerr.StageRasterize, pipeerr.CorruptInput,
			strings.TrimSpace(string(errb)), err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sortByPageNumber(matches)
	if len(matches) == 0 {
		return nil, pipeerr.New(pipeerr.StageRasterize, pipeerr.RasterizationEmpty,
			"pdftoppm produced no images", nil)
	}

	pages := make([]Page, 0, len(matches))
	for i, path := range matches {
		img, err := decodePNGFile(path)
		if err != nil {
			return nil, pipeerr.New(pipeerr.StageRasterize, pipeerr.CorruptInput,
				fmt.Sprintf("decode rendered page %d", i), err)
		}
		rgba := toRGBA(img)
		b := rgba.Bounds()
		pages = append(pages, Page{
			Index:  i,
			Image:  rgba,
			Width:  b.Dx(),
			Height: b.Dy(),
			DPI:    r.cfg.DPI,
		})
	}

	r.logger.Debug("raster.pdf.ok", "pages", len(pages), "dpi", r.cfg.DPI, "declared_pages", count)
	return pages, nil
}

func decodePNGFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// sortByPageNumber orders pdftoppm outputs numerically. Lexicographic order
// breaks past nine pages (page-10 sorts before page-2).
func sortByPageNumber(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		return pageNumber(paths[i]) < pageNumber(paths[j])
	})
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndexByte(base, '-')
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
