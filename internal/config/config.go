package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"compras/internal/core"
)

type Config struct {
	// HTTP Server
	Port string
	// Port of the worker's /metrics listener.
	MetricsPort string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string
	// Directory with <Month>.json documents loaded by the memory backend.
	MemoryDataDir string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID       string
	GoogleServiceAccountFile  string
	GoogleServiceAccountJSON  string
	GoogleSpreadsheetYearTabs bool

	// Estimation
	EstimatorURL       string
	EstimatorAPIKey    string
	EstimatorModel     string
	EstimatorTimeout   time.Duration
	EstimationCacheTTL time.Duration
	HouseholdProfile   string

	// Month activated at start-up. Empty means the current calendar month.
	DefaultMonth string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		MetricsPort: getEnv("METRICS_PORT", "9091"),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/compras.db"),
		MemoryDataDir: getEnv("MEMORY_DATA_DIR", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "compras"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_months"),

		GoogleSpreadsheetID:       getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile:  getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON:  getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleSpreadsheetYearTabs: getEnvBool("GOOGLE_SPREADSHEET_YEAR_TABS", false),

		EstimatorURL:       getEnv("ESTIMATOR_URL", "https://generativelanguage.googleapis.com"),
		EstimatorAPIKey:    getEnv("ESTIMATOR_API_KEY", ""),
		EstimatorModel:     getEnv("ESTIMATOR_MODEL", "gemini-2.5-flash"),
		EstimatorTimeout:   getEnvDuration("ESTIMATOR_TIMEOUT", 30*time.Second),
		EstimationCacheTTL: getEnvDuration("ESTIMATION_CACHE_TTL", 6*time.Hour),
		HouseholdProfile:   getEnv("HOUSEHOLD_PROFILE", ""),

		DefaultMonth: getEnv("DEFAULT_MONTH", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// EstimationEnabled reports whether an estimator API key is configured.
func (c *Config) EstimationEnabled() bool {
	return c.EstimatorAPIKey != ""
}

// StartMonth returns the month key to activate at start-up.
func (c *Config) StartMonth(now time.Time) string {
	if m, err := core.ParseMonth(c.DefaultMonth); err == nil {
		return m
	}
	return core.CurrentMonth(now)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "memory" && c.MemoryDataDir != "" {
		if info, err := os.Stat(c.MemoryDataDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("memory data directory does not exist: %s", c.MemoryDataDir))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.DataBackend != "sqlite" {
			errors = append(errors, "AMQP change notifications require the sqlite backend")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.EstimatorAPIKey != "" {
		if parsedURL, err := url.Parse(c.EstimatorURL); err != nil || parsedURL.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid estimator URL '%s'", c.EstimatorURL))
		}
		if c.EstimatorModel == "" {
			errors = append(errors, "estimator model cannot be empty when an API key is provided")
		}
	}
	if c.EstimatorTimeout < time.Second || c.EstimatorTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid estimator timeout %v: must be between 1s and 5m", c.EstimatorTimeout))
	}
	if c.EstimationCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid estimation cache TTL %v: must be at least 1 minute", c.EstimationCacheTTL))
	}

	if c.DefaultMonth != "" {
		if _, err := core.ParseMonth(c.DefaultMonth); err != nil {
			errors = append(errors, fmt.Sprintf("invalid default month '%s'", c.DefaultMonth))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the export worker needs on top of
// Validate.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.DataBackend != "sqlite" {
		errors = append(errors, "the export worker reads the sqlite backend: set DATA_BACKEND=sqlite")
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required by the export worker")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty for the export worker")
	}
	if port, err := strconv.Atoi(c.MetricsPort); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid metrics port '%s'", c.MetricsPort))
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
