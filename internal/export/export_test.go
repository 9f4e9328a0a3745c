package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ocrfield/docextract/constants"
	"github.com/ocrfield/docextract/internal/pipeline"
	"github.com/ocrfield/docextract/internal/schema"
)

func TestResultsXLSX(t *testing.T) {
	s := schema.Default()
	svc := NewService(s, nil)

	results := []*pipeline.Result{
		{
			RunID:      "run-1",
			Name:       "rg.pdf",
			Status:     constants.RunStatusSuccess,
			Confidence: 0.85,
			Fields: &schema.Fields{
				Present: map[string]string{
					"full_name": "MARIA DA SILVA",
					"cpf":       "123.456.789-00",
				},
				SchemaVersion: "v1",
			},
		},
		{
			RunID:  "run-2",
			Name:   "blurry.png",
			Status: constants.RunStatusFailed,
			Error:  "ocr/ALL_PAGES_FAILED: recognition failed on all 1 pages",
		},
	}

	data, err := svc.ResultsXLSX(results)
	if err != nil {
		t.Fatalf("ResultsXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Documents")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}

	header := rows[0]
	wantMeta := []string{"File", "Run ID", "Status", "Confidence", "Error"}
	for i, h := range wantMeta {
		if header[i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, header[i], h)
		}
	}
	if len(header) != len(wantMeta)+len(s.Fields) {
		t.Fatalf("header has %d columns, want %d", len(header), len(wantMeta)+len(s.Fields))
	}
	// One column per schema field, in schema order.
	for i, fld := range s.Fields {
		if header[len(wantMeta)+i] != fld.Label {
			t.Fatalf("field column %d = %q, want %q", i, header[len(wantMeta)+i], fld.Label)
		}
	}

	ok := rows[1]
	if ok[0] != "rg.pdf" || ok[2] != "SUCCESS" {
		t.Fatalf("row 1 = %v", ok)
	}
	nameCol, cpfCol := -1, -1
	for i, h := range header {
		switch h {
		case "Holder's full name":
			nameCol = i
		case "CPF number":
			cpfCol = i
		}
	}
	if nameCol < 0 || cpfCol < 0 {
		t.Fatalf("field columns missing in header %v", header)
	}
	if ok[nameCol] != "MARIA DA SILVA" || ok[cpfCol] != "123.456.789-00" {
		t.Fatalf("row 1 field cells = %q, %q", ok[nameCol], ok[cpfCol])
	}

	failed := rows[2]
	if failed[0] != "blurry.png" || failed[2] != "FAILED" {
		t.Fatalf("row 2 = %v", failed)
	}
	if failed[4] == "" {
		t.Fatal("failed run must carry its error message")
	}
}

func TestResultsXLSXEmpty(t *testing.T) {
	svc := NewService(schema.Default(), nil)
	data, err := svc.ResultsXLSX(nil)
	if err != nil {
		t.Fatalf("ResultsXLSX(nil) error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Documents")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}
