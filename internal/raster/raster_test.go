package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"testing"

	"github.com/ocrfield/docextract/constants"
	"github.com/ocrfield/docextract/internal/pipeerr"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeRenderer mimics pdftoppm: it writes one PNG per page under the
// output prefix (the last argument), with the width encoding the page
// number so tests can verify ordering.
type fakeRenderer struct {
	pages  int
	padded bool
	err    error

	lastArgs []string
}

func (f *fakeRenderer) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	f.lastArgs = args
	if f.err != nil {
		return nil, []byte("renderer failed"), f.err
	}
	prefix := args[len(args)-1]
	for n := 1; n <= f.pages; n++ {
		name := fmt.Sprintf("%s-%d.png", prefix, n)
		if f.padded {
			name = fmt.Sprintf("%s-%02d.png", prefix, n)
		}
		img := image.NewRGBA(image.Rect(0, 0, n, 1))
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, nil, err
		}
		if err := os.WriteFile(name, buf.Bytes(), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func TestRasterizeImageNormalizesToRGBA(t *testing.T) {
	// Source color models vary (grayscale scans, paletted PNGs); output is
	// always one RGBA page.
	sources := map[string]image.Image{
		"gray":     image.NewGray(image.Rect(0, 0, 8, 6)),
		"rgba":     image.NewRGBA(image.Rect(0, 0, 8, 6)),
		"paletted": image.NewPaletted(image.Rect(0, 0, 8, 6), color.Palette{color.Black, color.White}),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			data := pngBytes(t, src)
			r := NewRasterizer(Config{}, nil)

			pages, err := r.Rasterize(context.Background(), data, constants.IMAGE)
			if err != nil {
				t.Fatalf("Rasterize() error = %v", err)
			}
			if len(pages) != 1 {
				t.Fatalf("pages = %d, want 1", len(pages))
			}
			pg := pages[0]
			if pg.Index != 0 || pg.Width != 8 || pg.Height != 6 || pg.DPI != 72 {
				t.Fatalf("page = %+v", pg)
			}
			if pg.Image == nil {
				t.Fatal("page image is nil")
			}
		})
	}
}

func TestRasterizeCorruptImage(t *testing.T) {
	r := NewRasterizer(Config{}, nil)
	_, err := r.Rasterize(context.Background(), []byte("not an image"), constants.IMAGE)
	var pe *pipeerr.Error
	if !errors.As(err, &pe) || pe.Kind != pipeerr.CorruptInput {
		t.Fatalf("error = %v, want CORRUPT_INPUT", err)
	}
}

func TestRasterizeUnsupportedFormat(t *testing.T) {
	r := NewRasterizer(Config{}, nil)
	_, err := r.Rasterize(context.Background(), nil, constants.Format("TIFF"))
	var pe *pipeerr.Error
	if !errors.As(err, &pe) || pe.Kind != pipeerr.UnsupportedFormat {
		t.Fatalf("error = %v, want UNSUPPORTED_FORMAT", err)
	}
}

func TestRasterizePDFPageOrder(t *testing.T) {
	// Twelve pages with unpadded suffixes: lexicographic order would put
	// page-10 before page-2.
	render := &fakeRenderer{pages: 12}
	r := NewRasterizer(Config{DPI: 150}, nil).WithRunner(render)
	r.pdfPageCount = func(string) (int, error) { return 12, nil }

	pages, err := r.Rasterize(context.Background(), []byte("%PDF-"), constants.PDF)
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if len(pages) != 12 {
		t.Fatalf("pages = %d, want 12", len(pages))
	}
	for i, pg := range pages {
		if pg.Index != i {
			t.Fatalf("pages[%d].Index = %d", i, pg.Index)
		}
		// The fake encodes the page number as the image width.
		if pg.Width != i+1 {
			t.Fatalf("pages[%d].Width = %d, want %d (out of order)", i, pg.Width, i+1)
		}
		if pg.DPI != 150 {
			t.Fatalf("pages[%d].DPI = %d, want 150", i, pg.DPI)
		}
	}
}

func TestRasterizePDFPaddedSuffixes(t *testing.T) {
	render := &fakeRenderer{pages: 3, padded: true}
	r := NewRasterizer(Config{}, nil).WithRunner(render)
	r.pdfPageCount = func(string) (int, error) { return 3, nil }

	pages, err := r.Rasterize(context.Background(), []byte("%PDF-"), constants.PDF)
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	for i, pg := range pages {
		if pg.Width != i+1 {
			t.Fatalf("pages[%d].Width = %d, want %d", i, pg.Width, i+1)
		}
	}
}

func TestRasterizePDFMaxPages(t *testing.T) {
	render := &fakeRenderer{pages: 2}
	r := NewRasterizer(Config{MaxPages: 2}, nil).WithRunner(render)
	r.pdfPageCount = func(string) (int, error) { return 30, nil }

	if _, err := r.Rasterize(context.Background(), []byte("%PDF-"), constants.PDF); err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	joined := fmt.Sprint(render.lastArgs)
	if !bytes.Contains([]byte(joined), []byte("-f 1 -l 2")) {
		t.Fatalf("args = %v, want page window flags", render.lastArgs)
	}
}

func TestRasterizeCorruptPDF(t *testing.T) {
	r := NewRasterizer(Config{}, nil).WithRunner(&fakeRenderer{})
	r.pdfPageCount = func(string) (int, error) { return 0, errors.New("invalid xref table") }

	_, err := r.Rasterize(context.Background(), []byte("junk"), constants.PDF)
	var pe *pipeerr.Error
	if !errors.As(err, &pe) || pe.Kind != pipeerr.CorruptInput {
		t.Fatalf("error = %v, want CORRUPT_INPUT", err)
	}
}

func TestRasterizeEmptyPDF(t *testing.T) {
	r := NewRasterizer(Config{}, nil).WithRunner(&fakeRenderer{})
	r.pdfPageCount = func(string) (int, error) { return 0, nil }

	_, err := r.Rasterize(context.Background(), []byte("%PDF-"), constants.PDF)
	var pe *pipeerr.Error
	if !errors.As(err, &pe) || pe.Kind != pipeerr.RasterizationEmpty {
		t.Fatalf("error = %v, want RASTERIZATION_EMPTY", err)
	}
}

func TestRasterizePDFEngineMissing(t *testing.T) {
	render := &fakeRenderer{err: &exec.Error{Name: "pdftoppm", Err: exec.ErrNotFound}}
	r := NewRasterizer(Config{}, nil).WithRunner(render)
	r.pdfPageCount = func(string) (int, error) { return 1, nil }

	_, err := r.Rasterize(context.Background(), []byte("%PDF-"), constants.PDF)
	var pe *pipeerr.Error
	if !errors.As(err, &pe) || pe.Kind != pipeerr.RasterizationEngineMissing {
		t.Fatalf("error = %v, want RASTERIZATION_ENGINE_MISSING", err)
	}
}

func TestRasterizePDFRendererFailure(t *testing.T) {
	render := &fakeRenderer{err: errors.New("exit status 1")}
	r := NewRasterizer(Config{}, nil).WithRunner(render)
	r.pdfPageCount = func(string) (int, error) { return 1, nil }

	_, err := r.Rasterize(context.Background(), []byte("%PDF-"), constants.PDF)
	var pe *pipeerr.Error
	if !errors.As(err, &pe) || pe.Kind != pipeerr.CorruptInput {
		t.Fatalf("error = %v, want CORRUPT_INPUT", err)
	}
}

func TestIsBinaryMissing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", exec.ErrNotFound, true},
		{"exec error", &exec.Error{Name: "x", Err: exec.ErrNotFound}, true},
		{"exit status", errors.New("exit status 1"), false},
	}
	for _, tt := range tests {
		if got := IsBinaryMissing(tt.err); got != tt.want {
			t.Errorf("%s: IsBinaryMissing = %v, want %v", tt.name, got, tt.want)
		}
	}
}
