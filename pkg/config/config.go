// Package config loads server configuration from DESKFS_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all server configuration.
type Config struct {
	Root      string `envconfig:"ROOT"`
	ReadOnly  bool   `envconfig:"READ_ONLY" default:"false"`
	Transport string `envconfig:"TRANSPORT" default:"stdio"`
	Addr      string `envconfig:"ADDR" default:"127.0.0.1:8080"`
	HTTPToken string `envconfig:"HTTP_TOKEN"`
	Journal   string `envconfig:"JOURNAL_DSN"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogDev      bool   `envconfig:"LOG_DEV" default:"false"`
	TraceStdout bool   `envconfig:"TRACE_STDOUT" default:"false"`
}

// Load reads configuration from the environment and fills in the default root.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("deskfs", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Root == "" {
		root, err := DefaultRoot()
		if err != nil {
			return nil, err
		}
		cfg.Root = root
	}
	return &cfg, nil
}

// Validate checks values flags or env could have set wrongly.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unsupported transport %q (want %s or %s)", c.Transport, TransportStdio, TransportHTTP)
	}
	if c.Root == "" {
		return fmt.Errorf("root directory is empty")
	}
	if c.Transport == TransportHTTP && c.Addr == "" {
		return fmt.Errorf("http transport needs an address")
	}
	return nil
}

// DefaultRoot is the current user's desktop directory.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "Desktop"), nil
}
