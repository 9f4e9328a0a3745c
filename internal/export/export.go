// Package export produces XLSX workbooks from batch extraction results.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ocrfield/docextract/internal/pipeline"
	"github.com/ocrfield/docextract/internal/schema"
)

const sheet = "Documents"

// Service writes one row per processed document: run metadata first, then
// one column per schema field in schema order so workbooks from the same
// schema version are column-compatible.
type Service struct {
	schema schema.Schema
	logger *slog.Logger
}

func NewService(s schema.Schema, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{schema: s, logger: logger}
}

// ResultsXLSX returns an XLSX workbook (as bytes) for the given results.
// Failed runs still get a row; their field cells stay empty and the error
// column carries the message.
func (s *Service) ResultsXLSX(results []*pipeline.Result) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{"File", "Run ID", "Status", "Confidence", "Error"}
	for _, fld := range s.schema.Fields {
		headers = append(headers, fld.Label)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.Name)
		write(2, r.RunID)
		write(3, string(r.Status))
		write(4, fmt.Sprintf("%.2f", r.Confidence))
		write(5, truncate(r.Error, 140))

		for i, fld := range s.schema.Fields {
			v := ""
			if r.Fields != nil {
				v = r.Fields.Present[fld.Key]
			}
			write(6+i, v)
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 36) // file
	_ = f.SetColWidth(sheet, "B", "B", 38) // run id
	_ = f.SetColWidth(sheet, "C", "D", 14)
	_ = f.SetColWidth(sheet, "E", "E", 48) // error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"columns", len(headers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
