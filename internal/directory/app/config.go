package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	SourceConfig      = "config"
	SourceInteractive = "interactive"
)

// DuoConfig holds the Admin API credentials.
type DuoConfig struct {
	IntegrationKey string `yaml:"ikey"`
	SecretKey      string `yaml:"skey"`
	Host           string `yaml:"host"`
}

type Config struct {
	Duo DuoConfig `yaml:"duo"`

	DatabaseDriver   string        `yaml:"database_driver"`   // sqlite or postgres (default: sqlite)
	DatabaseDSN      string        `yaml:"database_dsn"`      // sqlite file or postgres URL (default: duosync.db)
	Timezone         string        `yaml:"timezone"`          // zone for last_login (default: America/New_York)
	CredentialSource string        `yaml:"credential_source"` // config or interactive (default: config)
	PruneLinks       bool          `yaml:"prune_links"`       // unlink associations absent upstream (default: false)
	Interval         time.Duration `yaml:"interval"`          // watch interval (default: 15m)
	APITimeout       time.Duration `yaml:"api_timeout"`       // per request timeout (default: 30s)
	APIRate          float64       `yaml:"api_rate"`          // requests per second, 0 disables (default: 2)
	APIBurst         int           `yaml:"api_burst"`         // limiter burst (default: 1)

	Env       string `yaml:"env"`        // Environment (dev, staging, prod) (default: dev)
	LogLevel  string `yaml:"log_level"`  // Log level (debug, info, warn, error) (default: info)
	LogFormat string `yaml:"log_format"` // Log format (json, text) (default: text)

	// Entities is chosen by the command or the --entities flag, never by
	// file or environment.
	Entities domain.EntitySet `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DatabaseDriver:   DriverSQLite,
		DatabaseDSN:      "duosync.db",
		Timezone:         "America/New_York",
		CredentialSource: SourceConfig,
		Interval:         15 * time.Minute,
		APITimeout:       30 * time.Second,
		APIRate:          2,
		APIBurst:         1,
		Env:              "dev",
		LogLevel:         "info",
		LogFormat:        "text",
		Entities:         domain.NewEntitySet(domain.AllEntities...),
	}
}

// LoadConfig layers defaults, the optional YAML file at path (or
// DUOSYNC_CONFIG when path is empty) and environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("DUOSYNC_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.Duo.IntegrationKey = getEnvOrDefault("DUO_IKEY", c.Duo.IntegrationKey)
	c.Duo.SecretKey = getEnvOrDefault("DUO_SKEY", c.Duo.SecretKey)
	c.Duo.Host = getEnvOrDefault("DUO_HOST", c.Duo.Host)

	c.DatabaseDriver = getEnvOrDefault("DUOSYNC_DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseDSN = getEnvOrDefault("DUOSYNC_DATABASE_DSN", c.DatabaseDSN)
	c.Timezone = getEnvOrDefault("DUOSYNC_TIMEZONE", c.Timezone)
	c.CredentialSource = getEnvOrDefault("DUOSYNC_CREDENTIAL_SOURCE", c.CredentialSource)
	c.PruneLinks = getEnvBoolOrDefault("DUOSYNC_PRUNE_LINKS", c.PruneLinks)
	c.Interval = getEnvDurationOrDefault("DUOSYNC_INTERVAL", c.Interval)
	c.APITimeout = getEnvDurationOrDefault("DUOSYNC_API_TIMEOUT", c.APITimeout)
	c.APIRate = getEnvFloatOrDefault("DUOSYNC_API_RATE", c.APIRate)
	c.APIBurst = getEnvIntOrDefault("DUOSYNC_API_BURST", c.APIBurst)

	c.Env = getEnvOrDefault("ENV", c.Env)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
}

// Validate checks everything except the Duo credentials, which an
// interactive source only supplies later (see ValidateCredentials).
func (c Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.DatabaseDriver))
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	switch c.CredentialSource {
	case SourceConfig, SourceInteractive:
	default:
		errs = append(errs, fmt.Errorf("unsupported credential source %q", c.CredentialSource))
	}
	if c.APIRate < 0 {
		errs = append(errs, errors.New("api rate must not be negative"))
	}
	if c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateCredentials reports which Duo credentials are missing.
func (c Config) ValidateCredentials() error {
	var missing []string
	if c.Duo.IntegrationKey == "" {
		missing = append(missing, "integration key")
	}
	if c.Duo.SecretKey == "" {
		missing = append(missing, "secret key")
	}
	if c.Duo.Host == "" {
		missing = append(missing, "api host")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing duo credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
