package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ocrfield/docextract/internal/pipeerr"
)

// SendJSON posts a JSON body to a full URL with optional headers and
// returns the raw response body and status code. It does not assume any
// provider; callers decide the URL and headers.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("llm.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error("llm.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("llm.http.request", "req_id", reqID, "url", url, "content_length", len(bs))

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("llm.http.send_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			logger.Warn("llm.http.response_body_close_error", "req_id", reqID, "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	logger.Debug("llm.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

// KindFromHTTPStatus maps a service HTTP status onto the pipeline error
// taxonomy. 404 counts as invalid argument: an unknown model identifier
// cannot succeed on retry.
func KindFromHTTPStatus(status int) pipeerr.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pipeerr.ExtractionAuthFailure
	case status == http.StatusTooManyRequests:
		return pipeerr.ExtractionQuotaExceeded
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return pipeerr.ExtractionInvalidArgument
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return pipeerr.ExtractionTimeout
	case status >= 500:
		return pipeerr.ExtractionServiceUnavailable
	}
	return pipeerr.ExtractionTransportError
}
