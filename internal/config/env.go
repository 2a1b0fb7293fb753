package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ComposeConfig defines sheet geometry and the default pairing/order options.
type ComposeConfig struct {
	SheetWidth  float64
	SheetHeight float64
	Pairing     string // "template"|"pairwise"
	Order       string // "forward"|"reverse"
	WorkDir     string
	Validation  string // "relaxed"|"strict"
	TempMaxAge  time.Duration
}

// MetricsConfig controls the textfile export of collected metrics.
type MetricsConfig struct {
	Textfile string
}

// BatchConfig defines batch runner limits and the optional status store.
type BatchConfig struct {
	Concurrency    int
	StatusRedisURL string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Compose ComposeConfig
	Metrics MetricsConfig
	Batch   BatchConfig
}

// LoadDotEnv loads a .env file from the working directory if present.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfnotes.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "20"), 20),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "5"), 5),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}
	if strings.EqualFold(cfg.Logging.File, "off") || cfg.Logging.File == "-" {
		cfg.Logging.File = ""
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfnotes",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// A4 rotated
	cfg.Compose = ComposeConfig{
		SheetWidth:  parseFloat(getEnv("SHEET_WIDTH", "842"), 842),
		SheetHeight: parseFloat(getEnv("SHEET_HEIGHT", "595"), 595),
		Pairing:     strings.ToLower(getEnv("PAIRING", "template")),
		Order:       strings.ToLower(getEnv("ORDER", "forward")),
		WorkDir:     getEnv("WORK_DIR", os.TempDir()),
		Validation:  strings.ToLower(getEnv("PDF_VALIDATION", "relaxed")),
		TempMaxAge:  parseDuration(getEnv("TEMP_MAX_AGE", "24h"), 24*time.Hour),
	}
	if cfg.Compose.SheetWidth <= 0 {
		cfg.Compose.SheetWidth = 842
	}
	if cfg.Compose.SheetHeight <= 0 {
		cfg.Compose.SheetHeight = 595
	}

	cfg.Metrics = MetricsConfig{
		Textfile: getEnv("METRICS_TEXTFILE", ""),
	}

	cfg.Batch = BatchConfig{
		Concurrency:    parseInt(getEnv("BATCH_CONCURRENCY", "2"), 2),
		StatusRedisURL: getEnv("STATUS_REDIS_URL", ""),
	}
	if cfg.Batch.Concurrency <= 0 {
		cfg.Batch.Concurrency = 1
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
