// Package history keeps a local log of pipeline runs in SQLite. The
// pipeline itself is stateless; recording happens at the CLI boundary and
// a store failure never fails the run.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ocrfield/docextract/constants"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	file_name    TEXT NOT NULL,
	status       TEXT NOT NULL,
	pages        INTEGER NOT NULL,
	pages_failed INTEGER NOT NULL,
	fields_found INTEGER NOT NULL,
	confidence   REAL NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	duration_ms  INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
`

// Record is one finished run as persisted.
type Record struct {
	RunID       string
	FileName    string
	Status      constants.RunStatus
	Pages       int
	PagesFailed int
	FieldsFound int
	Confidence  float32
	Error       string
	Duration    time.Duration
	CreatedAt   time.Time
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database at path and applies the
// schema. SQLite writes are serialized, so a single connection avoids
// SQLITE_BUSY under the batch CLI.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("history.open", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts one run record. CreatedAt defaults to now when zero.
func (s *Store) Save(ctx context.Context, r Record) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs
		   (run_id, file_name, status, pages, pages_failed, fields_found,
		    confidence, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.FileName, string(r.Status), r.Pages, r.PagesFailed,
		r.FieldsFound, r.Confidence, r.Error, r.Duration.Milliseconds(),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	s.logger.Debug("history.saved", "run_id", r.RunID, "status", string(r.Status))
	return nil
}

// Recent returns the latest n records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, file_name, status, pages, pages_failed, fields_found,
		        confidence, error, duration_ms, created_at
		   FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var status, createdAt string
		var durationMS int64
		if err := rows.Scan(&r.RunID, &r.FileName, &status, &r.Pages,
			&r.PagesFailed, &r.FieldsFound, &r.Confidence, &r.Error,
			&durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = constants.RunStatus(status)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
