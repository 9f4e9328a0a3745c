package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ocrfield/docextract/constants"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func TestSaveAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	records := []Record{
		{RunID: "run-1", FileName: "a.pdf", Status: constants.RunStatusSuccess, Pages: 2, FieldsFound: 8, Confidence: 0.9, Duration: 1500 * time.Millisecond, CreatedAt: base},
		{RunID: "run-2", FileName: "b.png", Status: constants.RunStatusFailed, Pages: 1, PagesFailed: 1, Error: "ocr/ALL_PAGES_FAILED: recognition failed on all 1 pages", CreatedAt: base.Add(time.Minute)},
		{RunID: "run-3", FileName: "c.jpg", Status: constants.RunStatusPartial, Pages: 3, PagesFailed: 1, FieldsFound: 4, Confidence: 0.55, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save(%s) error = %v", r.RunID, err)
		}
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent() = %d records, want 3", len(got))
	}
	// Newest first.
	if got[0].RunID != "run-3" || got[2].RunID != "run-1" {
		t.Fatalf("order = [%s %s %s], want newest first", got[0].RunID, got[1].RunID, got[2].RunID)
	}

	first := got[2]
	if first.FileName != "a.pdf" || first.Status != constants.RunStatusSuccess {
		t.Fatalf("record = %+v", first)
	}
	if first.Pages != 2 || first.FieldsFound != 8 {
		t.Fatalf("counts = %+v", first)
	}
	if first.Duration != 1500*time.Millisecond {
		t.Fatalf("duration = %v", first.Duration)
	}
	if !first.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %v, want %v", first.CreatedAt, base)
	}

	failed := got[1]
	if failed.Error == "" || failed.Status != constants.RunStatusFailed {
		t.Fatalf("failed record = %+v", failed)
	}
}

func TestRecentLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := store.Save(ctx, Record{
			RunID:     "run-" + string(rune('a'+i)),
			FileName:  "x.pdf",
			Status:    constants.RunStatusSuccess,
			Pages:     1,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) = %d records", len(got))
	}
	if got[0].RunID != "run-e" {
		t.Fatalf("Recent(2)[0] = %s, want run-e", got[0].RunID)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.db")
	ctx := context.Background()

	s1, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if err := s1.Save(ctx, Record{RunID: "r1", FileName: "a.pdf", Status: constants.RunStatusSuccess, Pages: 1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening applies the schema without clobbering existing rows.
	s2, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer s2.Close()
	got, err := s2.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].RunID != "r1" {
		t.Fatalf("records = %+v, want the saved row to survive reopen", got)
	}
}
