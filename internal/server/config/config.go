// Package config handles configuration for the reference device service,
// including defaults, a JSON or YAML file overlay, and command-line flags.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the device service.
//
// Fields:
//   - Addr: HTTP bind address.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps devices in memory.
//   - ConnectAttempts: how many times to try connecting and migrating.
//   - ConnectBackoff: delay before the first retry; it grows up to ten times.
//   - ShutdownTimeout: grace period for in-flight requests on shutdown.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	Addr            string
	DatabaseDSN     string
	ConnectAttempts uint
	ConnectBackoff  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.DatabaseDSN = ""
	c.ConnectAttempts = 5
	c.ConnectBackoff = 500 * time.Millisecond
	c.ShutdownTimeout = 5 * time.Second
	c.LogLevel = "info"
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address is empty")
	}
	if c.ConnectAttempts == 0 {
		return fmt.Errorf("connect attempts must be at least 1")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
