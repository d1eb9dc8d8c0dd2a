package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/flagx"
)

// Flags handled by parseFlags. Other components may define their own flags
// in the same command line.
var knownFlags = []string{"-a", "-d", "-i"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the REST API (default from Config)
//	-d string   path of the local SQLite database (default from Config)
//	-i int      online check interval in seconds (default from Config)
//
// The function filters os.Args with flagx.FilterArgs, so unknown flags and
// subcommands are ignored here.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the REST API")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
		}
	})
}
