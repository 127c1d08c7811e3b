package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

type Config struct {
	// Identity of the signed-in user. Empty means local-only.
	UserID string

	// Remote relational store. Empty disables the remote.
	RemoteDBPath string

	// On-device snapshot store
	LocalDBPath string
	LocalScope  string

	DefaultCurrency  string
	SnapshotDebounce time.Duration
	CategoryCacheTTL time.Duration
	LogLevel         string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

func Load() *Config {
	return &Config{
		UserID:       getEnv("FINANZEN_USER_ID", ""),
		RemoteDBPath: getEnv("REMOTE_DB_PATH", "./data/finanzen.db"),
		LocalDBPath:  getEnv("LOCAL_DB_PATH", "./data/local.db"),
		LocalScope:   getEnv("LOCAL_SCOPE", "finanzen"),

		DefaultCurrency:  getEnv("DEFAULT_CURRENCY", "EUR"),
		SnapshotDebounce: getEnvDuration("SNAPSHOT_DEBOUNCE", 500*time.Millisecond),
		CategoryCacheTTL: getEnvDuration("CATEGORY_CACHE_TTL", time.Hour),
		LogLevel:         getEnv("LOG_LEVEL", "info"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finanzen"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Ledger"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if c.LocalDBPath == "" {
		errors = append(errors, "local database path cannot be empty")
	} else if err := ensureDir(c.LocalDBPath); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LocalScope == "" {
		errors = append(errors, "local scope cannot be empty")
	}
	if c.RemoteDBPath != "" {
		if err := ensureDir(c.RemoteDBPath); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if !currencyCode.MatchString(c.DefaultCurrency) {
		errors = append(errors, fmt.Sprintf("invalid default currency '%s': must be three upper-case letters", c.DefaultCurrency))
	}

	if c.SnapshotDebounce < 0 || c.SnapshotDebounce > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid snapshot debounce %v: must be between 0 and 1 minute", c.SnapshotDebounce))
	}
	if c.CategoryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache TTL %v: must not be negative", c.CategoryCacheTTL))
	}

	isValidLevel := false
	for _, l := range validLogLevels {
		if strings.EqualFold(c.LogLevel, l) {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// RemoteEnabled reports whether a remote store is configured.
func (c *Config) RemoteEnabled() bool { return c.RemoteDBPath != "" }

func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// ensureDir creates the parent directory of a database file.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create database directory '%s': %v", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
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
