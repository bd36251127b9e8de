package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"ttlkernel.yaml"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	Workspace string           `short:"w" help:"Workspace directory holding the kernel checkout" default:".ttlkernel"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Sync the kernel source, enable the TTL options, build, and collect artifacts"`
	Check   CheckCmd   `cmd:"" help:"Run the preflight checks without building"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild automatically on upstream commits or kernel config changes"`
	History HistoryCmd `cmd:"" help:"List past builds"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(c.Verbose),
	}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel resolves the log level from the verbose flag and the
// TTLKERNEL_LOG_LEVEL environment variable. The flag wins.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("TTLKERNEL_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
