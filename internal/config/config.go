// Package config loads server configuration from the environment,
// following an env-vars-plus-dotenv-plus-validate pattern.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// StorageEngine selects the backing Engine implementation.
type StorageEngine string

const (
	EngineMemory StorageEngine = "memory"
	EngineTree   StorageEngine = "tree"
)

// Config holds all server configuration. Tags follow caarlos0/env/v11
// conventions: env names and defaults. No field is tagged as required;
// required settings are checked by Validate.
type Config struct {
	Addr      string `env:"KVMUX_ADDR" envDefault:":4443"`
	AdminAddr string `env:"KVMUX_ADMIN_ADDR" envDefault:":9091"`

	TLSCertFile       string `env:"KVMUX_TLS_CERT" envDefault:"certs/server.crt"`
	TLSKeyFile        string `env:"KVMUX_TLS_KEY" envDefault:"certs/server.key"`
	TLSClientCA       string `env:"KVMUX_TLS_CLIENT_CA" envDefault:""`
	RequireClientCert bool   `env:"KVMUX_TLS_REQUIRE_CLIENT_CERT" envDefault:"false"`

	StorageEngine StorageEngine `env:"KVMUX_STORAGE_ENGINE" envDefault:"memory"`
	StoragePath   string        `env:"KVMUX_STORAGE_PATH" envDefault:"data/kvmux.db"`

	ReplicationBrokers []string `env:"KVMUX_REPLICATION_BROKERS" envSeparator:","`
	ReplicationTopic   string   `env:"KVMUX_REPLICATION_TOPIC" envDefault:"kvmux.mutations"`

	AdmissionMaxConnections     int     `env:"KVMUX_ADMISSION_MAX_CONNECTIONS" envDefault:"1000"`
	AdmissionMaxStreamsPerConn  int     `env:"KVMUX_ADMISSION_MAX_STREAMS_PER_CONN" envDefault:"256"`
	AdmissionConnRatePerSec     int     `env:"KVMUX_ADMISSION_CONN_RATE_PER_SEC" envDefault:"200"`
	AdmissionCPURejectThreshold float64 `env:"KVMUX_ADMISSION_CPU_REJECT_THRESHOLD" envDefault:"85.0"`

	LogLevel  string `env:"KVMUX_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"KVMUX_LOG_FORMAT" envDefault:"json"`

	Environment string `env:"KVMUX_ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from a .env file (if present) and the
// environment, then validates it. Priority: env vars > .env file >
// defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("KVMUX_ADDR is required")
	}
	switch c.StorageEngine {
	case EngineMemory, EngineTree:
	default:
		return fmt.Errorf("KVMUX_STORAGE_ENGINE must be %q or %q, got %q", EngineMemory, EngineTree, c.StorageEngine)
	}
	if c.StorageEngine == EngineTree && c.StoragePath == "" {
		return fmt.Errorf("KVMUX_STORAGE_PATH is required when KVMUX_STORAGE_ENGINE=%q", EngineTree)
	}
	if c.AdmissionMaxConnections < 1 {
		return fmt.Errorf("KVMUX_ADMISSION_MAX_CONNECTIONS must be > 0, got %d", c.AdmissionMaxConnections)
	}
	if c.AdmissionCPURejectThreshold < 0 || c.AdmissionCPURejectThreshold > 100 {
		return fmt.Errorf("KVMUX_ADMISSION_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.AdmissionCPURejectThreshold)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("KVMUX_LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("KVMUX_LOG_FORMAT must be one of json, pretty, got %q", c.LogFormat)
	}
	if len(c.ReplicationBrokers) > 0 && c.ReplicationTopic == "" {
		return fmt.Errorf("KVMUX_REPLICATION_TOPIC is required when KVMUX_REPLICATION_BROKERS is set")
	}
	return nil
}

// LogConfig emits the loaded configuration as a structured log line.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("admin_addr", c.AdminAddr).
		Str("storage_engine", string(c.StorageEngine)).
		Int("admission_max_connections", c.AdmissionMaxConnections).
		Int("admission_max_streams_per_conn", c.AdmissionMaxStreamsPerConn).
		Float64("admission_cpu_reject_threshold", c.AdmissionCPURejectThreshold).
		Bool("replication_enabled", len(c.ReplicationBrokers) > 0).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
