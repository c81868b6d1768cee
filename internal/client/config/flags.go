package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string     device service base URL
//	-d string     local database file
//	-t duration   per-request timeout, e.g. 5s
//	-i int        online check interval in seconds
//	-p string     sync policy: confirmed or optimistic
//	-l string     log level
//
// os.Args is filtered with flagx.FilterArgs so other flag sets sharing the
// command line do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-i", "-p", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "device service base URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database file")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "per-request timeout")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.SyncPolicy, "p", cfg.SyncPolicy, "sync policy: confirmed or optimistic")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
