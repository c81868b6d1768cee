package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/devicekeeper/internal/flagx"
	"github.com/dmitrijs2005/devicekeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of Config. Durations accept "1s" or
// integer nanoseconds.
type FileConfig struct {
	Addr            string          `json:"addr" yaml:"addr"`
	DatabaseDSN     string          `json:"database_dsn" yaml:"database_dsn"`
	ConnectAttempts *uint           `json:"connect_attempts" yaml:"connect_attempts"`
	ConnectBackoff  *timex.Duration `json:"connect_backoff" yaml:"connect_backoff"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel        string          `json:"log_level" yaml:"log_level"`
}

// parseFile overlays config with the file named by -c or -config. If the
// file cannot be read or decoded, parseFile panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	if c.Addr != "" {
		config.Addr = c.Addr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.ConnectAttempts != nil {
		config.ConnectAttempts = *c.ConnectAttempts
	}
	if c.ConnectBackoff != nil {
		config.ConnectBackoff = c.ConnectBackoff.Duration
	}
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
}
