// Package config loads runtime configuration for the device catalog client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. JSON by default,
//     YAML when the file ends in .yaml or .yml.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string     device service base URL
//	-d string     local database file
//	-t duration   per-request timeout
//	-i int        online status check interval (seconds)
//	-p string     sync policy (confirmed | optimistic)
//	-l string     log level
//
// # File schema
//
// Durations use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "database_path": "devices.db",
//	  "request_timeout": "5s",
//	  "online_check_interval": "3s",
//	  "sync_policy": "confirmed",
//	  "max_delete_attempts": 5,
//	  "adopt_server_ids": true,
//	  "log_level": "info"
//	}
package config
