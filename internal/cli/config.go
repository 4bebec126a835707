package cli

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config is the command line of cmd/fintrack.
type Config struct {
	ServerURL  string
	DataFile   string // SQLite file holding remembered sessions
	MinLoading time.Duration
	Timeout    time.Duration
	LogLevel   string
}

// ParseFlags reads args (without the program name). FINTRACK_SERVER and
// FINTRACK_DATA override the built-in defaults; flags override both.
func ParseFlags(args []string, errOut io.Writer) (Config, error) {
	dataDefault := os.Getenv("FINTRACK_DATA")
	if dataDefault == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		dataDefault = filepath.Join(dir, "fintrack", "session.db")
	}
	serverDefault := os.Getenv("FINTRACK_SERVER")
	if serverDefault == "" {
		serverDefault = "http://localhost:8080"
	}

	var cfg Config
	fs := flag.NewFlagSet("fintrack", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.ServerURL, "server", serverDefault, "auth server base URL")
	fs.StringVar(&cfg.DataFile, "data", dataDefault, "file for remembered sessions")
	fs.DurationVar(&cfg.MinLoading, "min-loading", 300*time.Millisecond, "minimum time a request shows as loading")
	fs.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", "warn", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, errors.New("unexpected arguments: commands are entered at the prompt")
	}
	return cfg, nil
}
