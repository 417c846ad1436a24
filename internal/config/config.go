package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	SeedFile     string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	GenerateSchedule    string
	GenerateConcurrency int

	// Projection
	InstallmentDueDay   int
	LowBalanceThreshold core.Money
	DefaultHorizonDays  int
	MaxHorizonDays      int
	ForecastCacheTTL    time.Duration
	Location            *time.Location

	// Logging
	LogLevel string

	// Google Sheets export
	GoogleSpreadsheetID     string
	GoogleForecastSheetName string
	GoogleCredentialsFile   string
	GoogleCredentialsJSON   string
	ExportMonths            int

	// raw values kept for Validate
	lowBalanceRaw string
	timezoneRaw   string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/meudin.db"),
		SeedFile:     getEnv("SEED_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "meudin"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "generate_requests"),

		GenerateSchedule:    getEnv("GENERATE_SCHEDULE", "0 6 * * *"),
		GenerateConcurrency: getEnvInt("GENERATE_CONCURRENCY", 4),

		InstallmentDueDay:  getEnvInt("INSTALLMENT_DUE_DAY", 10),
		DefaultHorizonDays: getEnvInt("DEFAULT_HORIZON_DAYS", 30),
		MaxHorizonDays:     getEnvInt("MAX_HORIZON_DAYS", 366),
		ForecastCacheTTL:   getEnvDuration("FORECAST_CACHE_TTL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		GoogleSpreadsheetID:     getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleForecastSheetName: getEnv("GOOGLE_FORECAST_SHEET_NAME", "Forecast"),
		GoogleCredentialsFile:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCredentialsJSON:   getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		ExportMonths:            getEnvInt("EXPORT_MONTHS", 6),

		lowBalanceRaw: getEnv("LOW_BALANCE_THRESHOLD", "500.00"),
		timezoneRaw:   getEnv("TIMEZONE", "UTC"),
	}

	if cents, err := core.ParseDecimalToCents(cfg.lowBalanceRaw); err == nil {
		cfg.LowBalanceThreshold = core.Money{Cents: cents}
	}
	if loc, err := time.LoadLocation(cfg.timezoneRaw); err == nil {
		cfg.Location = loc
	} else {
		cfg.Location = time.UTC
	}

	return cfg
}

// Today returns the current calendar date in the configured time zone.
func (c *Config) Today() core.Date {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return core.DateOf(time.Now().In(loc))
}

// SheetsExportEnabled reports whether forecasts should be pushed to a spreadsheet.
func (c *Config) SheetsExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
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

	// Validate data backend
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

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate worker configuration
	if _, err := cron.ParseStandard(c.GenerateSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid generate schedule '%s': %v", c.GenerateSchedule, err))
	}
	if c.GenerateConcurrency < 1 || c.GenerateConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid generate concurrency %d: must be between 1 and 64", c.GenerateConcurrency))
	}

	// Validate projection settings
	if c.InstallmentDueDay < 1 || c.InstallmentDueDay > 31 {
		errors = append(errors, fmt.Sprintf("invalid installment due day %d: must be between 1 and 31", c.InstallmentDueDay))
	}
	if c.lowBalanceRaw != "" {
		if _, err := core.ParseDecimalToCents(c.lowBalanceRaw); err != nil {
			errors = append(errors, fmt.Sprintf("invalid low balance threshold '%s': %v", c.lowBalanceRaw, err))
		}
	}
	if c.MaxHorizonDays < 1 || c.MaxHorizonDays > 3660 {
		errors = append(errors, fmt.Sprintf("invalid max horizon %d: must be between 1 and 3660 days", c.MaxHorizonDays))
	}
	if c.DefaultHorizonDays < 1 || c.DefaultHorizonDays > c.MaxHorizonDays {
		errors = append(errors, fmt.Sprintf("invalid default horizon %d: must be between 1 and %d", c.DefaultHorizonDays, c.MaxHorizonDays))
	}
	if c.ForecastCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid forecast cache TTL %v: must not be negative", c.ForecastCacheTTL))
	}
	if c.timezoneRaw != "" {
		if _, err := time.LoadLocation(c.timezoneRaw); err != nil {
			errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.timezoneRaw, err))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	// Validate Google Sheets export if enabled
	if c.SheetsExportEnabled() {
		if c.GoogleForecastSheetName == "" {
			errors = append(errors, "Google forecast sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			errors = append(errors, "either GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS_JSON must be provided for sheets export")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
		if c.ExportMonths < 1 || c.ExportMonths > 24 {
			errors = append(errors, fmt.Sprintf("invalid export months %d: must be between 1 and 24", c.ExportMonths))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
