package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitOK     = 0
	ExitNoData = 1
	ExitError  = 2
)

// GlobalOptions holds flags shared by every command.
type GlobalOptions struct {
	ConfigFile string
	LogLevel   string
}

// Global is bound to the root command's persistent flags.
var Global = &GlobalOptions{}

// AddGlobalFlags registers the persistent flags on the root command.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&Global.ConfigFile, "config", "c", "", "Configuration file (defaults are used when omitted)")
	cmd.PersistentFlags().StringVar(&Global.LogLevel, "log-level", "", "Log level (debug|info|warn|error), overrides the config file")
}

// ParseLogLevel converts a level name to a slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", level)
	}
}

// NewLogger creates the text logger used by the CLI. The flag level wins
// over the configured one.
func NewLogger(w io.Writer, flagLevel, configLevel string) (*slog.Logger, error) {
	level := configLevel
	if flagLevel != "" {
		level = flagLevel
	}
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
