package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ocrfield/docextract/internal/pipeerr"
)

// Config controls the retry/timeout envelope around one backend.
type Config struct {
	Attempts       int           // total attempts including the first, default 3
	BackoffBase    time.Duration // first backoff delay, doubled per retry, default 500ms
	AttemptTimeout time.Duration // per-attempt deadline, default 60s
}

// Service wraps a backend with precondition checks and bounded
// exponential-backoff retries. Transient service faults (quota, timeout,
// unavailability, transport) are retried; auth and argument errors fail
// immediately since retrying them cannot succeed.
type Service struct {
	backend Extractor
	cfg     Config
	logger  *slog.Logger
}

func NewService(backend Extractor, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 60 * time.Second
	}
	return &Service{backend: backend, cfg: cfg, logger: logger}
}

// Extract runs one logical extraction: precondition checks, then up to
// cfg.Attempts calls to the backend. Returns the raw response text.
func (s *Service) Extract(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return "", pipeerr.New(pipeerr.StageExtract, pipeerr.MissingCredential,
			"no API credential supplied", nil)
	}
	if len(strings.TrimSpace(req.Text)) < MinInputLen {
		return "", pipeerr.New(pipeerr.StageExtract, pipeerr.InsufficientInput,
			"aggregated text too short for extraction", nil)
	}

	rid := uuid.New().String()
	s.logger.Info("llm.extract.start",
		"req_id", rid,
		"text_len", len(req.Text),
		"schema_version", req.Schema.Version,
		"attempts_max", s.cfg.Attempts,
	)

	var lastErr *pipeerr.Error
	delay := s.cfg.BackoffBase
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		raw, err := s.attempt(ctx, req)
		if err == nil {
			s.logger.Info("llm.extract.ok", "req_id", rid, "attempt", attempt, "bytes", len(raw))
			return raw, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = classify(err)
		if !pipeerr.Retriable(lastErr.Kind) {
			s.logger.Error("llm.extract.failed",
				"req_id", rid, "attempt", attempt, "kind", string(lastErr.Kind), "error", lastErr)
			return "", lastErr
		}
		if attempt == s.cfg.Attempts {
			break
		}

		s.logger.Warn("llm.extract.retry",
			"req_id", rid, "attempt", attempt, "kind", string(lastErr.Kind),
			"backoff_ms", delay.Milliseconds(),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	s.logger.Error("llm.extract.exhausted",
		"req_id", rid, "attempts", s.cfg.Attempts, "kind", string(lastErr.Kind), "error", lastErr)
	return "", lastErr
}

func (s *Service) attempt(ctx context.Context, req Request) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()
	return s.backend.Extract(attemptCtx, req)
}

// classify normalizes any backend error into the pipeline taxonomy.
// A per-attempt deadline surfaces as ExtractionTimeout.
func classify(err error) *pipeerr.Error {
	var pe *pipeerr.Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pipeerr.New(pipeerr.StageExtract, pipeerr.ExtractionTimeout,
			"extraction call exceeded deadline", err)
	}
	return pipeerr.FromServiceError(err)
}
