package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds runtime settings for the device catalog client.
type Config struct {
	ServerURL           string
	DatabasePath        string
	RequestTimeout      time.Duration
	OnlineCheckInterval time.Duration
	SyncPolicy          string
	MaxDeleteAttempts   int
	AdoptServerIDs      bool
	LogLevel            string
	LogFormat           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = "devices.db"
	c.RequestTimeout = 5 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncPolicy = "confirmed"
	c.MaxDeleteAttempts = 5
	c.AdoptServerIDs = true
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server url %q", c.ServerURL)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.OnlineCheckInterval <= 0 {
		return fmt.Errorf("online check interval must be positive, got %s", c.OnlineCheckInterval)
	}
	switch c.SyncPolicy {
	case "confirmed", "optimistic":
	default:
		return fmt.Errorf("unknown sync policy %q", c.SyncPolicy)
	}
	if c.MaxDeleteAttempts < 1 {
		return fmt.Errorf("max delete attempts must be at least 1, got %d", c.MaxDeleteAttempts)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file (if given) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
