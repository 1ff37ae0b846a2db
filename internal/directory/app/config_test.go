package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DUO_IKEY", "DUO_SKEY", "DUO_HOST", "DUOSYNC_CONFIG",
		"DUOSYNC_DATABASE_DRIVER", "DUOSYNC_DATABASE_DSN", "DUOSYNC_TIMEZONE",
		"DUOSYNC_CREDENTIAL_SOURCE", "DUOSYNC_PRUNE_LINKS", "DUOSYNC_INTERVAL",
		"DUOSYNC_API_TIMEOUT", "DUOSYNC_API_RATE", "DUOSYNC_API_BURST",
		"ENV", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "duosync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	require.Equal(t, "duosync.db", cfg.DatabaseDSN)
	require.Equal(t, "America/New_York", cfg.Timezone)
	require.Equal(t, SourceConfig, cfg.CredentialSource)
	require.Equal(t, 15*time.Minute, cfg.Interval)
	require.Equal(t, "text", cfg.LogFormat)
	require.False(t, cfg.PruneLinks)
	require.Len(t, cfg.Entities, 4)
	require.NoError(t, cfg.Validate())
	require.Error(t, cfg.ValidateCredentials())
}

func TestLoadConfigLayers(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
duo:
  ikey: DIFILE
  skey: file-secret
  host: api-file.duosecurity.com
database_driver: postgres
database_dsn: postgres://duosync@localhost/duosync
timezone: Europe/Berlin
prune_links: true
interval: 5m
api_rate: 0.5
`)

	// Environment wins over the file
	t.Setenv("DUO_IKEY", "DIENV")
	t.Setenv("DUOSYNC_INTERVAL", "90")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "DIENV", cfg.Duo.IntegrationKey)
	require.Equal(t, "file-secret", cfg.Duo.SecretKey)
	require.Equal(t, "api-file.duosecurity.com", cfg.Duo.Host)
	require.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	require.Equal(t, "postgres://duosync@localhost/duosync", cfg.DatabaseDSN)
	require.Equal(t, "Europe/Berlin", cfg.Timezone)
	require.True(t, cfg.PruneLinks)
	require.Equal(t, 90*time.Minute, cfg.Interval)
	require.InDelta(t, 0.5, cfg.APIRate, 1e-9)
	require.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ValidateCredentials())
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "timezone: UTC\n")
	t.Setenv("DUOSYNC_CONFIG", path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadConfigErrors(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "interval: [not, a, duration]\n"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"dsn", func(c *Config) { c.DatabaseDSN = " " }},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus_Mons" }},
		{"source", func(c *Config) { c.CredentialSource = "vault" }},
		{"rate", func(c *Config) { c.APIRate = -1 }},
		{"interval", func(c *Config) { c.Interval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("DUOSYNC_TEST_INT", "x")
	t.Setenv("DUOSYNC_TEST_BOOL", "maybe")
	t.Setenv("DUOSYNC_TEST_FLOAT", "fast")
	t.Setenv("DUOSYNC_TEST_DURATION", "soon")

	require.Equal(t, 3, getEnvIntOrDefault("DUOSYNC_TEST_INT", 3))
	require.True(t, getEnvBoolOrDefault("DUOSYNC_TEST_BOOL", true))
	require.InDelta(t, 1.5, getEnvFloatOrDefault("DUOSYNC_TEST_FLOAT", 1.5), 1e-9)
	require.Equal(t, time.Second, getEnvDurationOrDefault("DUOSYNC_TEST_DURATION", time.Second))
}
