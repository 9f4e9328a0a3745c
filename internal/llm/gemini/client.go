// Package gemini implements the extraction backend against the Google
// generativelanguage generateContent API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ocrfield/docextract/internal/llm"
	"github.com/ocrfield/docextract/internal/pipeerr"
)

// Config for the Gemini backend.
type Config struct {
	BaseURL     string        // default https://generativelanguage.googleapis.com/v1beta
	Model       string        // e.g. "gemini-2.0-flash"
	Temperature float32       // 0..2, kept at 0 for deterministic output
	Timeout     time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// generateContent response, reduced to the parts we read.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Extract sends one generateContent call and returns the raw response text.
func (c *Client) Extract(ctx context.Context, req llm.Request) (string, error) {
	prompt := llm.BuildPrompt(req.Schema, req.Text)

	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":      c.cfg.Temperature,
			"responseMimeType": "application/json",
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	headers := map[string]string{"x-goog-api-key": req.Credential}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		if status != 0 {
			return "", pipeerr.New(pipeerr.StageExtract, llm.KindFromHTTPStatus(status),
				serviceMessage(raw, status), err)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", pipeerr.New(pipeerr.StageExtract, pipeerr.ExtractionTransportError,
			"gemini request failed", err)
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", pipeerr.New(pipeerr.StageExtract, pipeerr.ExtractionTransportError,
			"decode gemini response", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", pipeerr.New(pipeerr.StageExtract, pipeerr.ExtractionServiceUnavailable,
			"gemini returned no candidates", nil)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

// serviceMessage pulls the error message out of a Google error envelope,
// falling back to the bare status code.
func serviceMessage(raw []byte, status int) string {
	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err == nil && resp.Error != nil {
		return fmt.Sprintf("gemini: %s (%s)", resp.Error.Message, resp.Error.Status)
	}
	return fmt.Sprintf("gemini: http status %d", status)
}
