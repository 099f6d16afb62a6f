// Package config loads the bank connect client configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration
type Config struct {
	BankConnect   BankConnectConfig
	Observability ObservabilityConfig
	Export        ExportConfig
}

// BankConnectConfig is consumed by the connector and the entity poll loop.
type BankConnectConfig struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	// MaxRetryLimit bounds attempts for create, lookup and upload.
	MaxRetryLimit int
	// PollTimeout bounds one poll cycle of a category read.
	PollTimeout  time.Duration
	PollInterval time.Duration
	// RequestTimeout is the per-request HTTP timeout.
	RequestTimeout     time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int
}

type ObservabilityConfig struct {
	LogLevel       slog.Level
	MetricsEnabled bool
	MetricsPort    int
}

// ExportConfig drives the export archive and the refresh scheduler of the CLI.
type ExportConfig struct {
	Dir string
	// Keep is how many exports per entity the archive retains; 0 keeps all.
	Keep            int
	RefreshSchedule string
}

// Defaults
const (
	DefaultExportDir       = "./exports"
	DefaultExportKeep      = 10
	DefaultRefreshSchedule = "@every 1h"

	DefaultBaseURL        = "https://portal.finbox.in"
	DefaultAPIVersion     = "v1"
	DefaultMaxRetryLimit  = 3
	DefaultPollTimeout    = 60 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultRequestTimeout = 60 * time.Second
)

// Default returns a configuration with every default applied and no API key.
func Default() *Config {
	return &Config{
		BankConnect: BankConnectConfig{
			BaseURL:            DefaultBaseURL,
			APIVersion:         DefaultAPIVersion,
			MaxRetryLimit:      DefaultMaxRetryLimit,
			PollTimeout:        DefaultPollTimeout,
			PollInterval:       DefaultPollInterval,
			RequestTimeout:     DefaultRequestTimeout,
			RateLimitPerSecond: 10,
			RateLimitBurst:     20,
		},
		Observability: ObservabilityConfig{
			LogLevel:    slog.LevelInfo,
			MetricsPort: 9090,
		},
		Export: ExportConfig{
			Dir:             DefaultExportDir,
			Keep:            DefaultExportKeep,
			RefreshSchedule: DefaultRefreshSchedule,
		},
	}
}

// Load reads configuration from environment variables, after loading any of the
// given .env files that exist (".env" when none are given).
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	def := Default()
	pollTimeout, err := getEnvAsDuration("BANKCONNECT_POLL_TIMEOUT", def.BankConnect.PollTimeout)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getEnvAsDuration("BANKCONNECT_POLL_INTERVAL", def.BankConnect.PollInterval)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvAsDuration("BANKCONNECT_REQUEST_TIMEOUT", def.BankConnect.RequestTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BankConnect: BankConnectConfig{
			APIKey:             getEnv("BANKCONNECT_API_KEY", ""),
			BaseURL:            strings.TrimRight(getEnv("BANKCONNECT_BASE_URL", def.BankConnect.BaseURL), "/"),
			APIVersion:         getEnv("BANKCONNECT_API_VERSION", def.BankConnect.APIVersion),
			MaxRetryLimit:      getEnvAsInt("BANKCONNECT_MAX_RETRY_LIMIT", def.BankConnect.MaxRetryLimit),
			PollTimeout:        pollTimeout,
			PollInterval:       pollInterval,
			RequestTimeout:     requestTimeout,
			RateLimitPerSecond: getEnvAsInt("BANKCONNECT_RATE_LIMIT_PER_SECOND", def.BankConnect.RateLimitPerSecond),
			RateLimitBurst:     getEnvAsInt("BANKCONNECT_RATE_LIMIT_BURST", def.BankConnect.RateLimitBurst),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnvAsLevel("LOG_LEVEL", def.Observability.LogLevel),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", def.Observability.MetricsEnabled),
			MetricsPort:    getEnvAsInt("METRICS_PORT", def.Observability.MetricsPort),
		},
		Export: ExportConfig{
			Dir:             getEnv("EXPORT_DIR", def.Export.Dir),
			Keep:            getEnvAsInt("EXPORT_KEEP", def.Export.Keep),
			RefreshSchedule: getEnv("REFRESH_SCHEDULE", def.Export.RefreshSchedule),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the client relies on.
func (c *Config) Validate() error {
	if err := c.BankConnect.Validate(); err != nil {
		return err
	}
	if c.Export.Keep < 0 {
		return fmt.Errorf("EXPORT_KEEP must not be negative, got %d", c.Export.Keep)
	}
	return nil
}

func (c *BankConnectConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("BANKCONNECT_API_KEY is required")
	}
	if c.BaseURL == "" {
		return errors.New("BANKCONNECT_BASE_URL is required")
	}
	if c.APIVersion == "" {
		return errors.New("BANKCONNECT_API_VERSION is required")
	}
	if c.MaxRetryLimit < 1 {
		return fmt.Errorf("BANKCONNECT_MAX_RETRY_LIMIT must be at least 1, got %d", c.MaxRetryLimit)
	}
	if c.PollTimeout < 0 {
		return fmt.Errorf("BANKCONNECT_POLL_TIMEOUT must not be negative, got %s", c.PollTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("BANKCONNECT_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	return nil
}

// APIRoot returns the versioned root of the bank connect API.
func (c *BankConnectConfig) APIRoot() string {
	return fmt.Sprintf("%s/bank-connect/%s", strings.TrimRight(c.BaseURL, "/"), c.APIVersion)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("500ms") or plain seconds ("0.2").
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, valueStr, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return defaultValue
	}
	return level
}
