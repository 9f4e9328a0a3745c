package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Raster   RasterConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	History  HistoryConfig
}

// RasterConfig holds rasterization-related configuration
type RasterConfig struct {
	Pdftoppm string
	DPI      int
	MaxPages int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract   string
	Language    string
	PSM         int
	OEM         int
	TessdataDir string
}

// LLMConfig holds extraction backend configuration
type LLMConfig struct {
	Backend     string // "gemini" or "openai"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	Attempts    int
	BackoffBase time.Duration
}

// PipelineConfig holds orchestration configuration
type PipelineConfig struct {
	Workers int
}

// HistoryConfig holds the local run log configuration
type HistoryConfig struct {
	Path    string
	Enabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	backend := getEnv("LLM_BACKEND", "gemini")
	defaultModel := "gemini-2.0-flash"
	defaultKeyVar := "GEMINI_API_KEY"
	if backend == "openai" {
		defaultModel = "gpt-4o-mini"
		defaultKeyVar = "OPENAI_API_KEY"
	}
	return &Config{
		Raster: RasterConfig{
			Pdftoppm: getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:      getEnvAsInt("RASTER_DPI", 300),
			MaxPages: getEnvAsInt("RASTER_MAX_PAGES", 0),
		},
		OCR: OCRConfig{
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Language:    getEnv("OCR_LANGUAGE", "por"),
			PSM:         getEnvAsInt("OCR_PSM", 0),
			OEM:         getEnvAsInt("OCR_OEM", 0),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
		},
		LLM: LLMConfig{
			Backend:     backend,
			Model:       getEnv("LLM_MODEL", defaultModel),
			APIKey:      getEnv("LLM_API_KEY", getEnv(defaultKeyVar, "")),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			Attempts:    getEnvAsInt("LLM_ATTEMPTS", 3),
			BackoffBase: getEnvAsDuration("LLM_BACKOFF_BASE", 500*time.Millisecond),
		},
		Pipeline: PipelineConfig{
			Workers: getEnvAsInt("PIPELINE_WORKERS", 0),
		},
		History: HistoryConfig{
			Path:    getEnv("HISTORY_DB", "docextract.db"),
			Enabled: getEnvAsBool("HISTORY_ENABLED", true),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
