// Package openai implements the extraction backend against any
// OpenAI-compatible chat/completions endpoint.
package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ocrfield/docextract/internal/llm"
	"github.com/ocrfield/docextract/internal/pipeerr"
)

// Config for the OpenAI-compatible backend.
type Config struct {
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g. "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
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

// Extract sends one chat/completions call and returns the message content.
func (c *Client) Extract(ctx context.Context, req llm.Request) (string, error) {
	prompt := llm.BuildPrompt(req.Schema, req.Text)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + req.Credential}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		if status != 0 {
			return "", pipeerr.New(pipeerr.StageExtract, llm.KindFromHTTPStatus(status),
				"openai: http status "+http.StatusText(status), err)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", pipeerr.New(pipeerr.StageExtract, pipeerr.ExtractionTransportError,
			"openai request failed", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", pipeerr.New(pipeerr.StageExtract, pipeerr.ExtractionTransportError,
			"decode openai response", err)
	}
	if len(cc.Choices) == 0 {
		return "", pipeerr.New(pipeerr.StageExtract, pipeerr.ExtractionServiceUnavailable,
			"no choices in openai response", nil)
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}
