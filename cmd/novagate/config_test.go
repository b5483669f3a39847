package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/novagate/internal/shell/logging"
	"github.com/artpar/novagate/internal/shell/workers"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8774, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Log.File)
	assert.Equal(t, "novagate.local", cfg.Compute.DefaultDomain)
	assert.Equal(t, "hetzner", cfg.Provider.Type)
	assert.Equal(t, 3, cfg.Provider.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Provider.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Provider.ProbeInterval)
	assert.Equal(t, 10*time.Second, cfg.Provider.ProbeTimeout)
	assert.False(t, cfg.Auth.RequireIdentity)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
  shutdown_timeout: 15s

log:
  level: "debug"
  format: "text"

compute:
  base_url: "https://compute.example.com"
  default_availability_zone: "nbg1"
  default_domain: "acme.com"

provider:
  type: "aws"
  access_key_id: "AKIA123"
  secret_access_key: "secret"
  region: "eu-central-1"
  retry_attempts: 5
  retry_delay: 2s

auth:
  require_identity: true
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "https://compute.example.com", cfg.Compute.BaseURL)
	assert.Equal(t, "nbg1", cfg.Compute.DefaultAvailabilityZone)
	assert.Equal(t, "acme.com", cfg.Compute.DefaultDomain)
	assert.Equal(t, "aws", cfg.Provider.Type)
	assert.Equal(t, "AKIA123", cfg.Provider.AccessKeyID)
	assert.Equal(t, "eu-central-1", cfg.Provider.Region)
	assert.Equal(t, 5, cfg.Provider.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Provider.RetryDelay)
	assert.True(t, cfg.Auth.RequireIdentity)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("NOVAGATE_SERVER_PORT", "9999")
	t.Setenv("NOVAGATE_PROVIDER_TYPE", "digitalocean")
	t.Setenv("NOVAGATE_PROVIDER_API_TOKEN", "do-token")
	t.Setenv("NOVAGATE_COMPUTE_DEFAULT_AVAILABILITY_ZONE", "fra1")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "digitalocean", cfg.Provider.Type)
	assert.Equal(t, "do-token", cfg.Provider.APIToken)
	assert.Equal(t, "fra1", cfg.Compute.DefaultAvailabilityZone)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8774, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("server: [port: 1"), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative retries", func(c *Config) { c.Provider.RetryAttempts = -1 }, true},
		{"negative probe interval", func(c *Config) { c.Provider.ProbeInterval = -time.Second }, true},
		{"relative metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, true},
		{"metrics disabled ignores path", func(c *Config) { c.Metrics.Enabled = false; c.Metrics.Path = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Server:  ServerConfig{Port: 8774},
				Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8774", ServerConfig{Host: "127.0.0.1", Port: 8774}.Address())
}

// =============================================================================
// Dotenv Tests
// =============================================================================

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOVAGATE_LOG_LEVEL", "warn")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "NOVAGATE_PROVIDER_API_TOKEN=from-dotenv\nNOVAGATE_LOG_LEVEL=debug\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0600))
	t.Cleanup(func() { os.Unsetenv("NOVAGATE_PROVIDER_API_TOKEN") })

	require.NoError(t, LoadDotEnv(envFile))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Provider.APIToken)
	assert.Equal(t, "warn", cfg.Log.Level, "process environment wins over dotenv")
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
	assert.NoError(t, LoadDotEnv(""))
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestSetupLogger_File(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "novagate.log")
	cfg := &Config{Log: LogConfig{Level: "debug", Format: "json", File: logFile, MaxSizeMB: 1}}

	logger, err := SetupLogger(cfg)
	require.NoError(t, err)

	ctx := logging.WithContext(context.Background(), slog.String("request_id", "req-abc"))
	logger.DebugContext(ctx, "hello")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "req-abc", rec["request_id"])
}

func TestSetupLogger_Levels(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	} {
		logger, err := SetupLogger(&Config{Log: LogConfig{Level: level, Format: "text"}})
		require.NoError(t, err)
		assert.True(t, logger.Enabled(context.Background(), want), level)
		assert.False(t, logger.Enabled(context.Background(), want-1), level)
	}
}

// =============================================================================
// Server Tests
// =============================================================================

func TestNewServer_InvalidProvider(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8774},
		Provider: ProviderConfig{Type: "hetzner"},
	}
	_, err := NewServer(cfg, slog.Default())
	require.Error(t, err)

	var sErr *ServerError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, ExitProviderError, sErr.ExitCode)
}

func TestNewServer(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8774, ShutdownTimeout: time.Second},
		Provider: ProviderConfig{Type: "digitalocean", APIToken: "token"},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	s, err := NewServer(cfg, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8774", s.httpServer.Addr)
	assert.Nil(t, s.probe)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestNewServer_WithProbe(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 8774, ShutdownTimeout: time.Second},
		Provider: ProviderConfig{
			Type:          "digitalocean",
			APIToken:      "token",
			ProbeInterval: time.Hour,
			ProbeTimeout:  time.Millisecond,
		},
	}
	s, err := NewServer(cfg, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, s.probe)
	assert.ErrorIs(t, s.probe.Ready(context.Background()), workers.ErrNotProbed)
	assert.NoError(t, s.Shutdown(context.Background()))
}

// =============================================================================
// Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"NOVAGATE_SERVER_HOST",
		"NOVAGATE_SERVER_PORT",
		"NOVAGATE_LOG_LEVEL",
		"NOVAGATE_LOG_FORMAT",
		"NOVAGATE_PROVIDER_TYPE",
		"NOVAGATE_PROVIDER_API_TOKEN",
		"NOVAGATE_COMPUTE_DEFAULT_AVAILABILITY_ZONE",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
