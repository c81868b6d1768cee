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

// FileConfig is a DTO used exclusively for file unmarshalling. Absent keys
// leave the current value alone.
type FileConfig struct {
	ServerURL           string          `json:"server_url" yaml:"server_url"`
	DatabasePath        string          `json:"database_path" yaml:"database_path"`
	RequestTimeout      *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	SyncPolicy          string          `json:"sync_policy" yaml:"sync_policy"`
	MaxDeleteAttempts   *int            `json:"max_delete_attempts" yaml:"max_delete_attempts"`
	AdoptServerIDs      *bool           `json:"adopt_server_ids" yaml:"adopt_server_ids"`
	LogLevel            string          `json:"log_level" yaml:"log_level"`
	LogFormat           string          `json:"log_format" yaml:"log_format"`
}

// parseFile overlays cfg with the file named by -c or -config. Files ending
// in .yaml or .yml are decoded as YAML, anything else as JSON. Read or
// decode errors panic.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func (fc *FileConfig) apply(cfg *Config) {
	if fc.ServerURL != "" {
		cfg.ServerURL = fc.ServerURL
	}
	if fc.DatabasePath != "" {
		cfg.DatabasePath = fc.DatabasePath
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.SyncPolicy != "" {
		cfg.SyncPolicy = fc.SyncPolicy
	}
	if fc.MaxDeleteAttempts != nil {
		cfg.MaxDeleteAttempts = *fc.MaxDeleteAttempts
	}
	if fc.AdoptServerIDs != nil {
		cfg.AdoptServerIDs = *fc.AdoptServerIDs
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
}
